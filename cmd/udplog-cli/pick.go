package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"github.com/tinytelemetry/udplog/internal/control"
)

var pickMenu = []struct {
	label   string
	command string
}{
	{"bind to me", cmdBind},
	{"status", cmdStatus},
	{"unbind", cmdUnbind},
	{"broadcast off", cmdBroadcastOff},
	{"broadcast on", cmdBroadcastOn},
}

// chooseAction prompts until a valid menu number is entered.
func chooseAction(in *bufio.Scanner, out io.Writer) (string, error) {
	for {
		fmt.Fprintf(out, "Choose [1-%d]: ", len(pickMenu))
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		n, err := strconv.Atoi(strings.TrimSpace(in.Text()))
		if err == nil && n >= 1 && n <= len(pickMenu) {
			return pickMenu[n-1].command, nil
		}
	}
}

func pick(ctx context.Context, client *control.Client, target netip.AddrPort, txPort int, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Selected %s\n", target)
	fmt.Fprintln(out, "Actions:")
	for i, item := range pickMenu {
		fmt.Fprintf(out, "  %d) %s\n", i+1, item.label)
	}

	name, err := chooseAction(bufio.NewScanner(in), out)
	if err != nil {
		return fmt.Errorf("pick: %w", err)
	}

	a := actions[name]
	if name == cmdBind {
		if a, err = bindAction(target, "", txPort); err != nil {
			return err
		}
	}
	return perform(ctx, client, target, a, out)
}

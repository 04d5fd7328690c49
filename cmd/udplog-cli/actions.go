package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"github.com/tinytelemetry/udplog/internal/control"
)

const (
	okNoReply = "OK (no reply)"
	noReply   = "(no reply)"
)

// action is one control request and what to print if the device stays
// silent.
type action struct {
	wire     string
	fallback string
}

var actions = map[string]action{
	cmdUnbind:       {wire: control.Command{Name: control.CmdUnbind}.String(), fallback: okNoReply},
	cmdStatus:       {wire: control.Command{Name: control.CmdStatus}.String(), fallback: noReply},
	cmdBroadcastOn:  {wire: control.Command{Name: control.CmdBroadcast, Args: []string{"on"}}.String(), fallback: okNoReply},
	cmdBroadcastOff: {wire: control.Command{Name: control.CmdBroadcast, Args: []string{"off"}}.String(), fallback: okNoReply},
}

// bindAction builds the bind request. An empty pcIP is replaced by the
// local address that routes to the device.
func bindAction(target netip.AddrPort, pcIP string, txPort int) (action, error) {
	var local netip.Addr
	if pcIP = strings.TrimSpace(pcIP); pcIP != "" {
		addr, err := netip.ParseAddr(pcIP)
		if err != nil || !addr.Is4() {
			return action{}, fmt.Errorf("invalid --pc-ip %q: want an IPv4 address", pcIP)
		}
		local = addr
	} else {
		addr, err := control.LocalAddrFor(target.Addr())
		if err != nil {
			return action{}, err
		}
		local = addr
	}
	cmd := control.Command{Name: control.CmdBind, Args: []string{local.String(), strconv.Itoa(txPort)}}
	return action{wire: cmd.String(), fallback: okNoReply}, nil
}

// perform sends a and prints the reply line.
func perform(ctx context.Context, client *control.Client, target netip.AddrPort, a action, out io.Writer) error {
	reply, err := client.Send(ctx, target, a.wire)
	switch {
	case errors.Is(err, control.ErrNoReply):
		reply = a.fallback
	case err != nil:
		return err
	}
	fmt.Fprintln(out, strings.TrimRight(reply, "\r\n"))
	return nil
}

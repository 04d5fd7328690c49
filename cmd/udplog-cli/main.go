// udplog-cli talks to running forwarders: it binds them to this machine,
// queries their status, toggles broadcast and prints the logs they send.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/tinytelemetry/udplog/internal/control"
)

// Build variables - set by ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
)

const (
	cmdBind         = "bind"
	cmdUnbind       = "unbind"
	cmdStatus       = "status"
	cmdBroadcastOn  = "broadcast-on"
	cmdBroadcastOff = "broadcast-off"
	cmdListen       = "listen"
	cmdPick         = "pick"
	cmdList         = "list"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: udplog-cli <command> [flags] [device]

commands:
  bind <device> [--pc-ip IP] [--tx-port N]   send this device's logs to this machine
  unbind <device>                            return the device to broadcast
  status <device>                            print the device status line
  broadcast-on <device>                      enable broadcast sending
  broadcast-off <device>                     disable broadcast sending
  listen [--port N] [--no-color]             print logs received on a UDP port
  pick <device> [--tx-port N]                choose one of the above from a menu
  list                                       find agents advertised over DNS-SD

A device is host or host:port (default control port 9998). Names ending in
.local are resolved over mDNS.
`)
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errors.New("no command given")
	}
	name, args := args[0], args[1:]
	switch name {
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	case "version", "--version":
		fmt.Fprintf(out, "udplog-cli %s (%s)\n", version, commit)
		return nil
	}

	fs := pflag.NewFlagSet("udplog-cli "+name, pflag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "config file (default is $HOME/.config/udplog/cli.yml)")
	pcIP := ""
	switch name {
	case cmdBind:
		fs.StringVar(&pcIP, "pc-ip", "", "IPv4 address the device should send to (auto-detected if empty)")
		fs.Uint16("tx-port", defaultTxPort, "UDP port this machine receives logs on")
	case cmdPick:
		fs.Uint16("tx-port", defaultTxPort, "UDP port this machine receives logs on")
	case cmdListen:
		fs.Uint16("port", defaultTxPort, "UDP port to listen on")
		fs.Bool("no-color", false, "print lines without severity colours")
	case cmdUnbind, cmdStatus, cmdBroadcastOn, cmdBroadcastOff, cmdList:
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", name)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, fs)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	switch name {
	case cmdListen, cmdList:
		if fs.NArg() != 0 {
			return fmt.Errorf("%s: unexpected argument %q", name, fs.Arg(0))
		}
		if name == cmdList {
			return list(ctx, browseDevices, cfg.MDNSTimeout, out)
		}
		return listen(ctx, cfg.TxPort, out, !cfg.NoColor)
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("%s: expected exactly one device", name)
	}
	target, err := resolveDevice(ctx, fs.Arg(0), cfg)
	if err != nil {
		return err
	}
	client := &control.Client{ReplyTimeout: cfg.ReplyTimeout}

	switch name {
	case cmdPick:
		return pick(ctx, client, target, cfg.TxPort, in, out)
	case cmdBind:
		a, err := bindAction(target, pcIP, cfg.TxPort)
		if err != nil {
			return err
		}
		return perform(ctx, client, target, a, out)
	default:
		return perform(ctx, client, target, actions[name], out)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tinytelemetry/udplog/internal/discovery"
)

type browseFunc func(ctx context.Context) ([]discovery.Device, error)

func browseDevices(ctx context.Context) ([]discovery.Device, error) {
	return discovery.Browse(ctx)
}

// list browses for agents for at most timeout and prints one line per agent.
func list(ctx context.Context, browse browseFunc, timeout time.Duration, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	devices, err := browse(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	printDevices(out, devices)
	return nil
}

func printDevices(out io.Writer, devices []discovery.Device) {
	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices found.")
		return
	}
	for _, d := range devices {
		fmt.Fprintf(out, "%s\tip=%s\trx_port=%d\n", d.Name, d.Addr, d.Port)
	}
}

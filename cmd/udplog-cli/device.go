package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/tinytelemetry/udplog/internal/discovery"
)

var errNoDevice = errors.New("empty device")

// parseDevice splits "host" or "host:port". A missing port is defaultPort.
func parseDevice(s string, defaultPort int) (string, uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0, errNoDevice
	}
	if !strings.Contains(s, ":") {
		return s, uint16(defaultPort), nil
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, fmt.Errorf("device %q: %w", s, err)
	}
	if host == "" {
		return "", 0, fmt.Errorf("device %q: missing host", s)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return "", 0, fmt.Errorf("device %q: invalid port %q", s, portStr)
	}
	return host, uint16(port), nil
}

// resolveDevice turns a device argument into the address of its control
// socket. Names ending in .local go to mDNS; other names use the system
// resolver, and single-label names that it cannot find are retried as
// name.local.
func resolveDevice(ctx context.Context, device string, cfg cliConfig) (netip.AddrPort, error) {
	host, port, err := parseDevice(device, cfg.ControlPort)
	if err != nil {
		return netip.AddrPort{}, err
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		if !addr.Is4() {
			return netip.AddrPort{}, fmt.Errorf("device %q: only IPv4 devices are supported", device)
		}
		return netip.AddrPortFrom(addr, port), nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.MDNSTimeout)
	defer cancel()

	var addr netip.Addr
	if discovery.IsLocalName(host) {
		addr, err = discovery.Lookup(ctx, host)
	} else {
		addr, err = lookupIPv4(ctx, host)
		if err != nil && !strings.Contains(host, ".") {
			addr, err = discovery.Lookup(ctx, host)
		}
	}
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("resolve %s: %w", host, err)
	}
	return netip.AddrPortFrom(addr, port), nil
}

func lookupIPv4(ctx context.Context, host string) (netip.Addr, error) {
	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, err
	}
	for _, a := range addrs {
		if a = a.Unmap(); a.Is4() {
			return a, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("no IPv4 address for %s", host)
}

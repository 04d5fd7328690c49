// Package discovery advertises the forwarder over mDNS and DNS-SD and
// resolves ".local" names and agent instances for the operator CLI.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/pion/mdns/v2"
	"golang.org/x/net/ipv4"
)

const localSuffix = ".local"

// ErrNoName is returned when an empty name is advertised or looked up.
var ErrNoName = errors.New("discovery: empty name")

// LocalName returns name with a ".local" suffix and no trailing dot.
func LocalName(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	if name == "" {
		return ""
	}
	if strings.HasSuffix(strings.ToLower(name), localSuffix) {
		return name
	}
	return name + localSuffix
}

// IsLocalName reports whether name is an mDNS name.
func IsLocalName(name string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSuffix(name, ".")), localSuffix)
}

// Config holds tunable parameters for the mDNS socket.
type Config struct {
	// Interfaces restricts the interfaces mDNS runs on. Nil means all.
	Interfaces []net.Interface
	// IncludeLoopback also answers on loopback interfaces.
	IncludeLoopback bool
}

func listen(names []string, conf []Config) (*mdns.Conn, error) {
	addr, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve %s: %w", mdns.DefaultAddressIPv4, err)
	}
	l, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("discovery: listen %s: %w", addr, err)
	}

	mc := &mdns.Config{LocalNames: names}
	if len(conf) > 0 {
		mc.Interfaces = conf[0].Interfaces
		mc.IncludeLoopback = conf[0].IncludeLoopback
	}
	conn, err := mdns.Server(ipv4.NewPacketConn(l), nil, mc)
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("discovery: start mdns: %w", err)
	}
	return conn, nil
}

// Responder answers mDNS queries for one host name.
type Responder struct {
	name string
	conn *mdns.Conn
}

// Advertise starts answering queries for hostname.local.
func Advertise(hostname string, conf ...Config) (*Responder, error) {
	name := LocalName(hostname)
	if name == "" {
		return nil, ErrNoName
	}
	conn, err := listen([]string{name}, conf)
	if err != nil {
		return nil, err
	}
	return &Responder{name: name, conn: conn}, nil
}

// Name returns the advertised name.
func (r *Responder) Name() string { return r.name }

// Close stops answering.
func (r *Responder) Close() error { return r.conn.Close() }

// Lookup resolves a ".local" name to an IPv4 address.
func Lookup(ctx context.Context, name string, conf ...Config) (netip.Addr, error) {
	name = LocalName(name)
	if name == "" {
		return netip.Addr{}, ErrNoName
	}
	conn, err := listen(nil, conf)
	if err != nil {
		return netip.Addr{}, err
	}
	defer conn.Close()

	_, addr, err := conn.QueryAddr(ctx, name)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("discovery: query %s: %w", name, err)
	}
	return addr.Unmap(), nil
}

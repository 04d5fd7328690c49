package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the DNS-SD service the agent registers on its control port.
	ServiceType = "_udplog._udp"
	// ServiceDomain is the browse and register domain.
	ServiceDomain = "local."
)

// ErrNoPort is returned when a service is registered without a port.
var ErrNoPort = errors.New("discovery: service port not set")

// Service is a registered DNS-SD instance.
type Service struct {
	instance string
	server   *zeroconf.Server
}

// Register announces instance as ServiceType on port until Close.
func Register(instance string, port int, text []string, conf ...Config) (*Service, error) {
	instance = strings.TrimSpace(instance)
	if instance == "" {
		return nil, ErrNoName
	}
	if port <= 0 || port > 65535 {
		return nil, ErrNoPort
	}

	var c Config
	if len(conf) > 0 {
		c = conf[0]
	}
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, text, c.Interfaces)
	if err != nil {
		return nil, fmt.Errorf("discovery: register %s: %w", instance, err)
	}
	return &Service{instance: instance, server: server}, nil
}

// Instance returns the registered instance name.
func (s *Service) Instance() string { return s.instance }

// Close withdraws the registration.
func (s *Service) Close() { s.server.Shutdown() }

// Device is one agent found by Browse.
type Device struct {
	Name string
	Host string
	Addr netip.Addr
	Port int
	Text []string
}

// Browse collects every ServiceType instance that answers before ctx is done.
// The result is sorted by name, case-insensitively.
func Browse(ctx context.Context, conf ...Config) ([]Device, error) {
	opts := []zeroconf.ClientOption{zeroconf.SelectIPTraffic(zeroconf.IPv4)}
	if len(conf) > 0 && len(conf[0].Interfaces) > 0 {
		opts = append(opts, zeroconf.SelectIfaces(conf[0].Interfaces))
	}
	resolver, err := zeroconf.NewResolver(opts...)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 16)
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("discovery: browse %s: %w", ServiceType, err)
	}

	found := make(map[string]Device)
	for {
		select {
		case <-ctx.Done():
			return sortDevices(found), nil
		case entry, ok := <-entries:
			if !ok {
				return sortDevices(found), nil
			}
			if d, ok := deviceFromEntry(entry); ok {
				found[strings.ToLower(d.Name)] = d
			}
		}
	}
}

// deviceFromEntry keeps entries that carry an instance name and an IPv4 address.
func deviceFromEntry(e *zeroconf.ServiceEntry) (Device, bool) {
	if e == nil || e.Instance == "" {
		return Device{}, false
	}
	for _, ip := range e.AddrIPv4 {
		addr, ok := netip.AddrFromSlice(ip.To4())
		if !ok {
			continue
		}
		return Device{
			Name: e.Instance,
			Host: strings.TrimSuffix(e.HostName, "."),
			Addr: addr,
			Port: e.Port,
			Text: e.Text,
		}, true
	}
	return Device{}, false
}

func sortDevices(found map[string]Device) []Device {
	devices := make([]Device, 0, len(found))
	for _, d := range found {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		return strings.ToLower(devices[i].Name) < strings.ToLower(devices[j].Name)
	})
	return devices
}

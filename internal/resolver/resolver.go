// Package resolver computes the subnet broadcast target from the host's
// interface addresses and re-resolves it when the network changes.
package resolver

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/tinytelemetry/udplog/internal/destination"
)

// Candidate is one interface address considered for broadcasting.
type Candidate struct {
	Name string
	Addr netip.Addr
	Mask netip.Addr
}

// Source lists candidates in priority order.
type Source interface {
	Candidates() ([]Candidate, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() ([]Candidate, error)

// Candidates implements Source.
func (f SourceFunc) Candidates() ([]Candidate, error) { return f() }

// Broadcast returns (ip AND mask) OR (NOT mask) for IPv4 operands.
func Broadcast(ip, mask netip.Addr) netip.Addr {
	a, m := ip.As4(), mask.As4()
	var out [4]byte
	for i := range out {
		out[i] = (a[i] & m[i]) | ^m[i]
	}
	return netip.AddrFrom4(out)
}

func usable(c Candidate) bool {
	if !c.Addr.Is4() || !c.Mask.Is4() {
		return false
	}
	return !c.Addr.IsUnspecified() && !c.Mask.IsUnspecified()
}

// Resolver writes the broadcast target into the destination state.
type Resolver struct {
	source Source
	state  *destination.State
	port   uint16
	events chan struct{}
}

// New creates a resolver targeting port on the broadcast address.
func New(source Source, state *destination.State, port uint16) *Resolver {
	return &Resolver{
		source: source,
		state:  state,
		port:   port,
		events: make(chan struct{}, 1),
	}
}

// Resolve picks the first usable candidate and records its broadcast target.
// When nothing is usable the previous target is left in place.
func (r *Resolver) Resolve() bool {
	_, ok := r.Lookup()
	return ok
}

// Lookup is Resolve that also returns the chosen target.
func (r *Resolver) Lookup() (netip.AddrPort, bool) {
	cands, err := r.source.Candidates()
	if err != nil {
		return netip.AddrPort{}, false
	}
	for _, c := range cands {
		if !usable(c) {
			continue
		}
		target := netip.AddrPortFrom(Broadcast(c.Addr, c.Mask), r.port)
		r.state.SetBroadcast(target)
		return target, true
	}
	return netip.AddrPort{}, false
}

// Notify signals a network change. Signals coalesce while one is pending.
func (r *Resolver) Notify() {
	select {
	case r.events <- struct{}{}:
	default:
	}
}

// Events delivers network change signals.
func (r *Resolver) Events() <-chan struct{} { return r.events }

// ErrNoInterface is returned when none of the named interfaces exists.
var ErrNoInterface = errors.New("resolver: no matching interface")

// SystemSource reads candidates from the host's interfaces. With Names set,
// only those interfaces are considered, in that order; otherwise every up,
// non-loopback interface is, in system order.
type SystemSource struct {
	Names []string
}

// Candidates implements Source.
func (s SystemSource) Candidates() ([]Candidate, error) {
	var ifaces []net.Interface
	if len(s.Names) > 0 {
		for _, name := range s.Names {
			ifi, err := net.InterfaceByName(name)
			if err != nil {
				continue
			}
			ifaces = append(ifaces, *ifi)
		}
		if len(ifaces) == 0 {
			return nil, ErrNoInterface
		}
	} else {
		all, err := net.Interfaces()
		if err != nil {
			return nil, fmt.Errorf("resolver: list interfaces: %w", err)
		}
		for _, ifi := range all {
			if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
				continue
			}
			ifaces = append(ifaces, ifi)
		}
	}

	var out []Candidate
	for _, ifi := range ifaces {
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		out = append(out, FromAddrs(ifi.Name, addrs)...)
	}
	return out, nil
}

// FromAddrs converts interface addresses to IPv4 candidates.
func FromAddrs(name string, addrs []net.Addr) []Candidate {
	var out []Candidate
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipn.IP.To4()
		if ip4 == nil || len(ipn.Mask) != net.IPv4len {
			continue
		}
		addr, _ := netip.AddrFromSlice(ip4)
		mask, _ := netip.AddrFromSlice(net.IP(ipn.Mask))
		out = append(out, Candidate{Name: name, Addr: addr, Mask: mask})
	}
	return out
}

// Package destination holds the shared record that decides where forwarded
// log lines go.
//
// All fields except the drop counter live behind a single mutex. Readers take
// a Snapshot and release the lock before doing any network I/O; holding the
// lock across a send would stall the control plane.
package destination

import (
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/udplog/internal/model"
)

// Snapshot is a copy of the state taken under the lock.
type Snapshot struct {
	Mode             model.Mode
	BroadcastEnabled bool
	BroadcastReady   bool
	Broadcast        netip.AddrPort
	UnicastReady     bool
	Unicast          netip.AddrPort
	Drops            uint64
}

// State is the mutable destination record shared by the dispatcher, the
// control listener, the resolver and the programmatic API.
type State struct {
	mu               sync.Mutex
	mode             model.Mode
	broadcastEnabled bool
	broadcastReady   bool
	broadcast        netip.AddrPort
	unicastReady     bool
	unicast          netip.AddrPort

	// drops is bumped from log call sites, which never take mu.
	drops atomic.Uint64
}

// New returns a state in its initial configuration: broadcast mode with
// broadcasting enabled and no target resolved yet.
func New() *State {
	s := &State{}
	s.Reset()
	return s
}

// Snapshot copies every field under the lock.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Mode:             s.mode,
		BroadcastEnabled: s.broadcastEnabled,
		BroadcastReady:   s.broadcastReady,
		Broadcast:        s.broadcast,
		UnicastReady:     s.unicastReady,
		Unicast:          s.unicast,
	}
	s.mu.Unlock()
	snap.Drops = s.drops.Load()
	return snap
}

// SetBroadcast records a freshly resolved broadcast target and marks it ready.
func (s *State) SetBroadcast(addr netip.AddrPort) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast = addr
	s.broadcastReady = true
}

// Bind switches to unicast delivery towards addr.
func (s *State) Bind(addr netip.AddrPort) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unicast = addr
	s.unicastReady = true
	s.mode = model.ModeUnicast
}

// Unbind returns to broadcast delivery and forgets the unicast target.
func (s *State) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = model.ModeBroadcast
	s.unicastReady = false
	s.unicast = netip.AddrPort{}
}

// SetBroadcastEnabled toggles broadcast delivery.
func (s *State) SetBroadcastEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastEnabled = enabled
}

// AddDrop counts one discarded line.
func (s *State) AddDrop() {
	s.drops.Add(1)
}

// Drops returns the number of lines discarded on a full queue.
func (s *State) Drops() uint64 {
	return s.drops.Load()
}

// Reset restores the initial values, including a zero drop counter.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = model.ModeBroadcast
	s.broadcastEnabled = true
	s.broadcastReady = false
	s.broadcast = netip.AddrPort{}
	s.unicastReady = false
	s.unicast = netip.AddrPort{}
	s.drops.Store(0)
}

package dispatch

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"

	"github.com/tinytelemetry/udplog/internal/destination"
	"github.com/tinytelemetry/udplog/internal/model"
	"github.com/tinytelemetry/udplog/internal/queue"
)

// Sender writes one datagram. *net.UDPConn satisfies it.
type Sender interface {
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
}

// Source yields lines to send.
type Source interface {
	Pop(ctx context.Context) (model.LogLine, error)
}

// Dispatcher is the single consumer of the transport queue.
type Dispatcher struct {
	source Source
	state  *destination.State
	conn   Sender

	sent       atomic.Uint64
	unrouted   atomic.Uint64
	sendErrors atomic.Uint64
}

// New creates a dispatcher reading from source and writing to conn.
func New(source Source, state *destination.State, conn Sender) *Dispatcher {
	return &Dispatcher{
		source: source,
		state:  state,
		conn:   conn,
	}
}

// SelectTarget picks the destination for one line: the unicast peer when
// bound, otherwise the broadcast address when enabled and resolved.
func SelectTarget(snap destination.Snapshot) (netip.AddrPort, bool) {
	if snap.Mode == model.ModeUnicast && snap.UnicastReady {
		return snap.Unicast, true
	}
	if snap.BroadcastEnabled && snap.BroadcastReady {
		return snap.Broadcast, true
	}
	return netip.AddrPort{}, false
}

// Run sends lines until ctx is done or the source is closed. A line popped
// but not yet written when Run returns is abandoned.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		line, err := d.source.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		d.send(line)
	}
}

func (d *Dispatcher) send(line model.LogLine) {
	// Snapshot releases the state lock before the write below.
	target, ok := SelectTarget(d.state.Snapshot())
	if !ok {
		d.unrouted.Add(1)
		return
	}
	if _, err := d.conn.WriteToUDPAddrPort(line.Bytes(), target); err != nil {
		d.sendErrors.Add(1)
		return
	}
	d.sent.Add(1)
}

// Sent returns the number of datagrams written.
func (d *Dispatcher) Sent() uint64 { return d.sent.Load() }

// Unrouted returns the number of lines dropped because no destination was
// ready. These are not part of the queue drop counter.
func (d *Dispatcher) Unrouted() uint64 { return d.unrouted.Load() }

// SendErrors returns the number of failed datagram writes.
func (d *Dispatcher) SendErrors() uint64 { return d.sendErrors.Load() }

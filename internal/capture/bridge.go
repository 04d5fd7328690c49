// Package capture intercepts the host log output and copies each line onto
// the transport queue.
//
// The Bridge decorates whatever sink was installed before it. Every write is
// passed through to that sink first and its result is what the caller sees,
// so installing the bridge never changes the behaviour of a log call site.
package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/udplog/internal/model"
)

// Enqueuer accepts formatted lines. The queue's overflow policy applies.
type Enqueuer interface {
	Enqueue(line model.LogLine) bool
}

// Config holds the formatting parameters of a Bridge.
type Config struct {
	// Capacity is the maximum size of one forwarded line, prefix included.
	Capacity int
	// Prefix enables the "[host] " line prefix.
	Prefix bool
	// Host returns the identity used in the prefix. An empty result falls
	// back to FallbackHost.
	Host func() string
	// FallbackHost is used until the host identity is known.
	FallbackHost string
}

// Bridge is a Sink decorator that forwards to the previous sink and, while
// enabled, enqueues a truncated copy of every line.
type Bridge struct {
	hook Hook
	cfg  Config

	mu        sync.Mutex
	installed bool
	restore   Sink         // exactly what Swap returned, possibly nil
	prev      atomic.Value // holds sinkBox; empty while uninstalled

	enabled atomic.Bool
	target  atomic.Value // holds enqueuerBox
}

type sinkBox struct{ s Sink }

type enqueuerBox struct{ e Enqueuer }

// NewBridge creates an uninstalled, disabled bridge.
func NewBridge(hook Hook, cfg Config) *Bridge {
	if cfg.Capacity <= 0 {
		cfg.Capacity = model.DefaultMaxLine
	}
	if cfg.FallbackHost == "" {
		cfg.FallbackHost = model.DefaultHostPrefix
	}
	b := &Bridge{hook: hook, cfg: cfg}
	b.prev.Store(sinkBox{})
	b.target.Store(enqueuerBox{})
	return b
}

// SetTarget sets the queue lines are copied to. A nil target discards them.
func (b *Bridge) SetTarget(e Enqueuer) {
	b.target.Store(enqueuerBox{e})
}

// Enable turns line capture on or off. Pass-through to the previous sink
// happens either way.
func (b *Bridge) Enable(on bool) {
	b.enabled.Store(on)
}

// Enabled reports whether lines are being captured.
func (b *Bridge) Enabled() bool { return b.enabled.Load() }

// Install registers the bridge as the current sink, remembering the one it
// replaces. Installing twice is a no-op.
func (b *Bridge) Install() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.installed {
		return
	}
	// Writes that reach the bridge between Swap and the store below still
	// land on the old output.
	if cur := b.hook.Current(); cur != nil {
		b.prev.Store(sinkBox{cur})
	}
	prev := b.hook.Swap(b)
	b.restore = prev
	if prev == nil {
		prev = NopSink
	}
	b.prev.Store(sinkBox{prev})
	b.installed = true
}

// Uninstall restores the previous sink and forgets it. It is safe to call on
// a bridge that was never installed.
func (b *Bridge) Uninstall() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.installed {
		return
	}
	b.hook.Swap(b.restore)
	b.restore = nil
	b.prev.Store(sinkBox{})
	b.installed = false
}

// Installed reports whether the bridge is the current sink.
func (b *Bridge) Installed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.installed
}

// previous is the sink every write passes through to. While uninstalled
// that is the hook's current output, so lines written straight to the
// bridge are never lost.
func (b *Bridge) previous() Sink {
	if s := b.prev.Load().(sinkBox).s; s != nil {
		return s
	}
	if cur := b.hook.Current(); cur != nil && cur != Sink(b) {
		return cur
	}
	return NopSink
}

// Write implements Sink.
func (b *Bridge) Write(p []byte) (int, error) {
	n, err := b.previous().Write(p)

	if !b.enabled.Load() {
		return n, err
	}
	line, ok := b.Format(p)
	if !ok {
		return n, err
	}
	if e := b.target.Load().(enqueuerBox).e; e != nil {
		e.Enqueue(line)
	}
	return n, err
}

// Logf formats a message and writes it through the bridge.
func (b *Bridge) Logf(format string, args ...any) (int, error) {
	return b.Write([]byte(fmt.Sprintf(format, args...)))
}

// Format builds the forwarded form of p: the optional host prefix followed
// by the payload, cut at the configured capacity. It reports false when
// there is nothing to send or the prefix alone fills the line.
func (b *Bridge) Format(p []byte) (model.LogLine, bool) {
	if len(p) == 0 {
		return model.LogLine{}, false
	}

	buf := make([]byte, 0, b.cfg.Capacity)
	if b.cfg.Prefix {
		host := ""
		if b.cfg.Host != nil {
			host = b.cfg.Host()
		}
		if host == "" {
			host = b.cfg.FallbackHost
		}
		prefix := "[" + host + "] "
		if len(prefix) >= b.cfg.Capacity {
			return model.LogLine{}, false
		}
		buf = append(buf, prefix...)
	}

	room := b.cfg.Capacity - len(buf)
	if len(p) > room {
		p = p[:room]
	}
	buf = append(buf, p...)
	return model.NewLogLine(buf, b.cfg.Capacity), true
}

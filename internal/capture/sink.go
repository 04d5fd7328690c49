package capture

import (
	"io"
	"log"
	"sync"
)

// Sink receives formatted log output. It is the host's existing log writer.
type Sink = io.Writer

// NopSink is the identity sink used whenever nothing else is installed.
var NopSink Sink = nopSink{}

type nopSink struct{}

func (nopSink) Write(p []byte) (int, error) { return len(p), nil }

// Hook owns the current log output. Swap installs a sink and returns the
// one it replaced; Current reports the installed one.
type Hook interface {
	Swap(next Sink) (prev Sink)
	Current() Sink
}

// StdLogHook swaps the output of the standard library logger.
type StdLogHook struct {
	mu sync.Mutex
}

// Swap implements Hook.
func (h *StdLogHook) Swap(next Sink) Sink {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := log.Writer()
	log.SetOutput(next)
	return prev
}

// Current implements Hook.
func (h *StdLogHook) Current() Sink {
	return log.Writer()
}

// WriterHook swaps a sink held in a caller-owned slot.
type WriterHook struct {
	mu  sync.Mutex
	out Sink
}

// NewWriterHook returns a hook whose current sink is out.
func NewWriterHook(out Sink) *WriterHook {
	return &WriterHook{out: out}
}

// Swap implements Hook.
func (h *WriterHook) Swap(next Sink) Sink {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.out
	h.out = next
	return prev
}

// Current implements Hook.
func (h *WriterHook) Current() Sink {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out
}

// Write sends p to the current sink.
func (h *WriterHook) Write(p []byte) (int, error) {
	h.mu.Lock()
	out := h.out
	h.mu.Unlock()
	if out == nil {
		return len(p), nil
	}
	return out.Write(p)
}

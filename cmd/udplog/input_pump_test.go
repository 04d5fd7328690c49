package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tinytelemetry/udplog/internal/model"
)

type fakeSource struct {
	name     string
	lines    chan model.InputLine
	stopped  chan struct{}
	stopOnce sync.Once
}

func newFakeSource(name string, buffer int) *fakeSource {
	return &fakeSource{
		name:    name,
		lines:   make(chan model.InputLine, buffer),
		stopped: make(chan struct{}),
	}
}

func (s *fakeSource) Lines() <-chan model.InputLine { return s.lines }
func (s *fakeSource) Name() string                  { return s.name }

func (s *fakeSource) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		close(s.lines)
	})
}

// lineRecorder records each Write call separately.
type lineRecorder struct {
	mu     sync.Mutex
	writes []string
	fail   string
}

func (r *lineRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != "" && strings.Contains(string(p), r.fail) {
		return 0, errors.New("rejected")
	}
	r.writes = append(r.writes, string(p))
	return len(p), nil
}

func runPump(t *testing.T, p *inputPump) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after every source closed")
	}
}

func TestInputPump_WritesEveryLineOncePerWrite(t *testing.T) {
	t.Parallel()

	tcp := newFakeSource("tcp", 4)
	stdin := newFakeSource("stdin", 4)
	tcp.lines <- model.InputLine{Source: "tcp", Text: "E (12) app: failed"}
	tcp.lines <- model.InputLine{Source: "tcp", Text: "I (13) app: retry"}
	stdin.lines <- model.InputLine{Source: "stdin", Text: "W (14) wifi: weak"}
	tcp.Stop()
	stdin.Stop()

	var out lineRecorder
	p := newInputPump([]NamedLogSource{tcp, stdin}, &out)
	runPump(t, p)

	if len(out.writes) != 3 {
		t.Fatalf("writes = %q, want 3 separate lines", out.writes)
	}
	for _, w := range out.writes {
		if strings.Count(w, "\n") != 1 || !strings.HasSuffix(w, "\n") {
			t.Fatalf("write %q is not exactly one line", w)
		}
	}
	joined := strings.Join(out.writes, "")
	for _, want := range []string{"E (12) app: failed\n", "I (13) app: retry\n", "W (14) wifi: weak\n"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("output %q missing %q", joined, want)
		}
	}
	if strings.Index(joined, "failed") > strings.Index(joined, "retry") {
		t.Fatalf("lines from one input reordered: %q", joined)
	}
	if got := p.Lines("tcp"); got != 2 {
		t.Fatalf("Lines(tcp) = %d, want 2", got)
	}
	if got := p.Lines("stdin"); got != 1 {
		t.Fatalf("Lines(stdin) = %d, want 1", got)
	}
}

func TestInputPump_SkipsEmptyLinesAndCountsWriteErrors(t *testing.T) {
	t.Parallel()

	src := newFakeSource("tcp", 4)
	src.lines <- model.InputLine{Source: "tcp", Text: ""}
	src.lines <- model.InputLine{Source: "tcp", Text: "kept"}
	src.lines <- model.InputLine{Source: "tcp", Text: "refused"}
	src.Stop()

	out := &lineRecorder{fail: "refused"}
	p := newInputPump([]NamedLogSource{src}, out)
	runPump(t, p)

	if len(out.writes) != 1 || out.writes[0] != "kept\n" {
		t.Fatalf("writes = %q, want [kept\\n]", out.writes)
	}
	if got := p.Lines("tcp"); got != 1 {
		t.Fatalf("Lines = %d, want 1", got)
	}
	if got := p.Errors("tcp"); got != 1 {
		t.Fatalf("Errors = %d, want 1", got)
	}
}

func TestInputPump_RunReturnsOnCancel(t *testing.T) {
	t.Parallel()

	src := newFakeSource("tcp", 1)
	p := newInputPump([]NamedLogSource{src}, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	p.Stop()
	p.Stop()
	select {
	case <-src.stopped:
	default:
		t.Fatal("Stop did not stop the source")
	}
}

func TestInputPump_NoSources(t *testing.T) {
	t.Parallel()

	p := newInputPump(nil, &bytes.Buffer{})
	if p.HasSources() {
		t.Fatal("HasSources() = true with no sources")
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if names := p.Names(); len(names) != 0 {
		t.Fatalf("Names() = %q", names)
	}
}

func TestInputPump_Names(t *testing.T) {
	t.Parallel()

	p := newInputPump([]NamedLogSource{newFakeSource("tcp", 1), newFakeSource("stdin", 1)}, &bytes.Buffer{})
	got := p.Names()
	if len(got) != 2 || got[0] != "tcp" || got[1] != "stdin" {
		t.Fatalf("Names() = %q", got)
	}
}

package logsource

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestStdinSourceStopClosesLines(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer func() { _ = w.Close() }()

	src := newStdinSourceWithReader(context.Background(), r)
	src.Stop()

	select {
	case _, ok := <-src.Lines():
		if ok {
			t.Fatal("expected lines channel to be closed after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lines channel to close")
	}
}

func TestStdinSourceStopIsIdempotent(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer func() { _ = w.Close() }()

	src := newStdinSourceWithReader(context.Background(), r)
	src.Stop()
	src.Stop()
}

func TestStdinSourceReadsNonEmptyLines(t *testing.T) {
	src := newStdinSourceWithReader(context.Background(), strings.NewReader("first\n\nsecond\r\nthird"))
	defer src.Stop()

	var got []string
	for line := range src.Lines() {
		if line.Source != "stdin" {
			t.Fatalf("Source = %q, want stdin", line.Source)
		}
		got = append(got, line.Text)
	}

	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStdinSourceStopsOnOversizedLine(t *testing.T) {
	input := strings.Repeat("x", 64) + "\nnext\n"
	src := newStdinSourceWithReader(context.Background(), strings.NewReader(input), StdinConfig{MaxLineSize: 16})

	select {
	case _, ok := <-src.Lines():
		if ok {
			t.Fatal("expected no lines after an oversized line")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lines channel to close")
	}
}

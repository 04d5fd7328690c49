package tcpserver

import (
	"net"
	"testing"
	"time"
)

func TestNewServer_DefaultLocalhostAddress(t *testing.T) {
	t.Parallel()

	s := NewServer("")
	if got := s.Addr(); got != "127.0.0.1:9996" {
		t.Fatalf("Addr() = %q, want %q", got, "127.0.0.1:9996")
	}
}

func TestNewServer_UsesConfiguredAddressAndBuffers(t *testing.T) {
	t.Parallel()

	s := NewServer("0.0.0.0:5000", ServerConfig{
		LineChannelSize: 64,
		MaxLineSize:     2048,
	})

	if got := s.Addr(); got != "0.0.0.0:5000" {
		t.Fatalf("Addr() = %q, want %q", got, "0.0.0.0:5000")
	}
	if got := cap(s.lineChan); got != 64 {
		t.Fatalf("line channel cap = %d, want %d", got, 64)
	}
	if got := s.maxLineSize; got != 2048 {
		t.Fatalf("max line size = %d, want %d", got, 2048)
	}
}

func TestServer_ReceivesLines(t *testing.T) {
	t.Parallel()

	s := NewServer("127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("E (12) app: failed\n\nI (13) app: retry\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, want := range []string{"E (12) app: failed", "I (13) app: retry"} {
		select {
		case got := <-s.Lines():
			if got.Text != want || got.Source != "tcp" {
				t.Fatalf("line = %+v, want %q from tcp", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestServer_StopClosesOpenConnections(t *testing.T) {
	t.Parallel()

	s := NewServer("127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an idle connection")
	}
	if _, ok := <-s.Lines(); ok {
		t.Fatal("Lines should be closed after Stop")
	}
}

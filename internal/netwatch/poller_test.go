package netwatch

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type addrScript struct {
	mu    sync.Mutex
	steps [][]string
	i     int
}

func (s *addrScript) next() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.steps[s.i]
	if s.i < len(s.steps)-1 {
		s.i++
	}
	if cur == nil {
		return nil, errors.New("netlink busy")
	}
	return append([]string(nil), cur...), nil
}

func TestPoller_CallsOnChangeOnlyWhenSetDiffers(t *testing.T) {
	t.Parallel()

	script := &addrScript{steps: [][]string{
		{"eth0=10.0.0.2/24"},
		{"eth0=10.0.0.2/24"},
		nil,
		{"wlan0=192.168.1.42/24", "eth0=10.0.0.2/24"},
		{"eth0=10.0.0.2/24", "wlan0=192.168.1.42/24"},
	}}

	var changes atomic.Int32
	p := NewPoller(func() { changes.Add(1) }, Config{Interval: time.Millisecond, Addrs: script.next})
	for range script.steps {
		p.poll()
	}

	if got := changes.Load(); got != 2 {
		t.Fatalf("changes = %d, want 2", got)
	}
}

func TestPoller_StartStop(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 1)
	p := NewPoller(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, Config{Interval: 10 * time.Millisecond, Addrs: func() ([]string, error) { return []string{"lo=127.0.0.1/8"}, nil }})

	p.Start()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("first poll did not report a change")
	}
	p.Stop()
}

package destination

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/tinytelemetry/udplog/internal/model"
)

func TestNew_InitialValues(t *testing.T) {
	t.Parallel()

	snap := New().Snapshot()
	if snap.Mode != model.ModeBroadcast {
		t.Fatalf("Mode = %v, want broadcast", snap.Mode)
	}
	if !snap.BroadcastEnabled {
		t.Fatal("broadcast should be enabled initially")
	}
	if snap.BroadcastReady || snap.UnicastReady {
		t.Fatalf("ready flags = %v/%v, want false/false", snap.BroadcastReady, snap.UnicastReady)
	}
	if snap.Drops != 0 {
		t.Fatalf("Drops = %d, want 0", snap.Drops)
	}
}

func TestBindUnbind(t *testing.T) {
	t.Parallel()

	s := New()
	target := netip.MustParseAddrPort("10.0.0.5:5000")
	s.Bind(target)

	snap := s.Snapshot()
	if snap.Mode != model.ModeUnicast || !snap.UnicastReady || snap.Unicast != target {
		t.Fatalf("after Bind: %+v", snap)
	}

	s.Unbind()
	snap = s.Snapshot()
	if snap.Mode != model.ModeBroadcast {
		t.Fatalf("Mode after Unbind = %v, want broadcast", snap.Mode)
	}
	if snap.UnicastReady {
		t.Fatal("unicast target should be forgotten after Unbind")
	}
}

func TestReset_RestoresInitialValues(t *testing.T) {
	t.Parallel()

	s := New()
	s.SetBroadcast(netip.MustParseAddrPort("192.168.1.255:9999"))
	s.Bind(netip.MustParseAddrPort("10.0.0.5:5000"))
	s.SetBroadcastEnabled(false)
	s.AddDrop()
	s.AddDrop()

	s.Reset()
	if got, want := s.Snapshot(), New().Snapshot(); got != want {
		t.Fatalf("Snapshot after Reset = %+v, want %+v", got, want)
	}
}

func TestAddDrop_ConcurrentIsMonotonic(t *testing.T) {
	t.Parallel()

	s := New()
	const workers, perWorker = 8, 500

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.AddDrop()
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	if got := s.Drops(); got != workers*perWorker {
		t.Fatalf("Drops = %d, want %d", got, workers*perWorker)
	}
}

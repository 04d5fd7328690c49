package resolver

import (
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/tinytelemetry/udplog/internal/destination"
)

func TestBroadcast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ip, mask, want string
	}{
		{"192.168.1.42", "255.255.255.0", "192.168.1.255"},
		{"10.0.5.7", "255.255.0.0", "10.0.255.255"},
		{"172.16.3.9", "255.255.255.252", "172.16.3.11"},
		{"10.1.2.3", "255.0.0.0", "10.255.255.255"},
	}

	for _, tt := range tests {
		got := Broadcast(netip.MustParseAddr(tt.ip), netip.MustParseAddr(tt.mask))
		if got.String() != tt.want {
			t.Fatalf("Broadcast(%s, %s) = %s, want %s", tt.ip, tt.mask, got, tt.want)
		}
	}
}

func staticSource(cands ...Candidate) Source {
	return SourceFunc(func() ([]Candidate, error) { return cands, nil })
}

func cand(name, ip, mask string) Candidate {
	return Candidate{Name: name, Addr: netip.MustParseAddr(ip), Mask: netip.MustParseAddr(mask)}
}

func TestResolve_FirstUsableCandidateWins(t *testing.T) {
	t.Parallel()

	state := destination.New()
	r := New(staticSource(
		Candidate{Name: "sta"},
		cand("sta", "0.0.0.0", "255.255.255.0"),
		cand("eth", "10.0.5.7", "255.255.0.0"),
		cand("wlan", "192.168.1.42", "255.255.255.0"),
	), state, 9999)

	if !r.Resolve() {
		t.Fatal("Resolve = false, want true")
	}
	snap := state.Snapshot()
	if !snap.BroadcastReady || snap.Broadcast != netip.MustParseAddrPort("10.0.255.255:9999") {
		t.Fatalf("broadcast = %v ready=%v", snap.Broadcast, snap.BroadcastReady)
	}
}

func TestResolve_FailureKeepsPreviousTarget(t *testing.T) {
	t.Parallel()

	state := destination.New()
	cands := []Candidate{cand("eth", "192.168.1.42", "255.255.255.0")}
	var fail bool
	r := New(SourceFunc(func() ([]Candidate, error) {
		if fail {
			return nil, errors.New("link down")
		}
		return cands, nil
	}), state, 9999)

	if !r.Resolve() {
		t.Fatal("first Resolve failed")
	}
	fail = true
	if r.Resolve() {
		t.Fatal("Resolve succeeded without candidates")
	}

	snap := state.Snapshot()
	if !snap.BroadcastReady || snap.Broadcast != netip.MustParseAddrPort("192.168.1.255:9999") {
		t.Fatalf("previous target lost: %v ready=%v", snap.Broadcast, snap.BroadcastReady)
	}
}

func TestResolve_ZeroMaskIsUnusable(t *testing.T) {
	t.Parallel()

	state := destination.New()
	r := New(staticSource(cand("eth", "192.168.1.42", "0.0.0.0")), state, 9999)
	if r.Resolve() {
		t.Fatal("Resolve accepted a zero netmask")
	}
	if state.Snapshot().BroadcastReady {
		t.Fatal("broadcast marked ready")
	}
}

func TestNotify_Coalesces(t *testing.T) {
	t.Parallel()

	r := New(staticSource(), destination.New(), 9999)
	r.Notify()
	r.Notify()
	r.Notify()

	<-r.Events()
	select {
	case <-r.Events():
		t.Fatal("notifications did not coalesce")
	default:
	}
}

func TestFromAddrs(t *testing.T) {
	t.Parallel()

	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("192.168.1.42"), Mask: net.CIDRMask(24, 32)},
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPAddr{IP: net.ParseIP("10.0.0.1")},
	}
	got := FromAddrs("eth0", addrs)
	if len(got) != 1 {
		t.Fatalf("FromAddrs returned %d candidates, want 1", len(got))
	}
	if got[0].Addr.String() != "192.168.1.42" || got[0].Mask.String() != "255.255.255.0" {
		t.Fatalf("candidate = %+v", got[0])
	}
}

func TestSystemSource_UnknownNames(t *testing.T) {
	t.Parallel()

	_, err := SystemSource{Names: []string{"does-not-exist0"}}.Candidates()
	if !errors.Is(err, ErrNoInterface) {
		t.Fatalf("Candidates err = %v, want ErrNoInterface", err)
	}
}

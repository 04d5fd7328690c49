// Package forwarder owns a running log forwarder: the capture bridge, the
// transport queue, the dispatch and control tasks, and the shared
// destination state they use.
//
// A Forwarder moves through Uninitialized, Initializing, Running and Stopped.
// Start opens sockets and, once a broadcast target has been resolved, starts
// exactly one dispatch task and one control task. Until then it waits in
// Initializing and resumes on the next network change. Stop tears everything
// down in a fixed order and may be followed by another Start.
package forwarder

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/udplog/internal/capture"
	"github.com/tinytelemetry/udplog/internal/control"
	"github.com/tinytelemetry/udplog/internal/destination"
	"github.com/tinytelemetry/udplog/internal/dispatch"
	"github.com/tinytelemetry/udplog/internal/hostid"
	"github.com/tinytelemetry/udplog/internal/model"
	"github.com/tinytelemetry/udplog/internal/queue"
	"github.com/tinytelemetry/udplog/internal/resolver"
)

// Phase is the lifecycle position of a forwarder.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseInitializing
	PhaseRunning
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseRunning:
		return "running"
	case PhaseStopped:
		return "stopped"
	default:
		return "uninitialized"
	}
}

// Forwarder is the owned context of one log forwarder.
type Forwarder struct {
	cfg      Config
	identity HostIdentity
	listenTx ListenFunc
	listenRx ListenFunc
	state    *destination.State
	resolver *resolver.Resolver
	bridge   *capture.Bridge
	handler  *control.Handler

	// mu serializes lifecycle transitions. Tasks never take it.
	mu         sync.Mutex
	phase      atomic.Int32
	ctx        context.Context
	cancel     context.CancelFunc
	group      *errgroup.Group
	watchDone  chan struct{}
	queue      *queue.Queue
	tx         *net.UDPConn
	rx         *net.UDPConn
	dispatcher *dispatch.Dispatcher
	listener   *control.Listener
	rxFailed   bool

	dispatchTasks atomic.Int32
	listenTasks   atomic.Int32
}

// New creates a forwarder in the Uninitialized phase. Zero numeric fields
// and an empty HostPrefix take their DefaultConfig values; DropOnFull and
// Prefix are used as given, so a zero Config blocks on a full queue and
// sends lines without a host prefix. Start from DefaultConfig to get the
// stock behaviour.
func New(cfg Config, opts ...Options) *Forwarder {
	cfg = cfg.withDefaults()
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Hook == nil {
		o.Hook = &capture.StdLogHook{}
	}
	if o.Identity == nil {
		o.Identity = hostid.New(cfg.HostPrefix)
	}
	if o.Source == nil {
		o.Source = resolver.SystemSource{Names: cfg.Interfaces}
	}
	if o.ListenTransport == nil {
		o.ListenTransport = func() (*net.UDPConn, error) {
			return net.ListenUDP("udp4", &net.UDPAddr{})
		}
	}
	if o.ListenControl == nil {
		addr := &net.UDPAddr{Port: cfg.ControlPort}
		if cfg.ControlHost != "" {
			addr.IP = net.ParseIP(cfg.ControlHost)
		}
		o.ListenControl = func() (*net.UDPConn, error) {
			return net.ListenUDP("udp4", addr)
		}
	}

	f := &Forwarder{
		cfg:      cfg,
		identity: o.Identity,
		listenTx: o.ListenTransport,
		listenRx: o.ListenControl,
		state:    destination.New(),
	}
	f.resolver = resolver.New(o.Source, f.state, uint16(cfg.LogPort))
	f.handler = control.NewHandler(f.state, f.Hostname)
	f.bridge = capture.NewBridge(o.Hook, capture.Config{
		Capacity:     cfg.MaxLine,
		Prefix:       cfg.Prefix,
		Host:         f.Hostname,
		FallbackHost: cfg.HostPrefix,
	})
	return f
}

// Phase returns the current lifecycle phase.
func (f *Forwarder) Phase() Phase { return Phase(f.phase.Load()) }

func (f *Forwarder) setPhase(p Phase) { f.phase.Store(int32(p)) }

// Start brings the forwarder up. It is a no-op while Initializing or
// Running. Missing sockets or an unresolved broadcast target leave it in
// Initializing; NetworkChanged resumes from there.
func (f *Forwarder) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.Phase() {
	case PhaseInitializing, PhaseRunning:
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.ctx, f.cancel = ctx, cancel
	f.group = &errgroup.Group{}

	policy := queue.Block
	if f.cfg.DropOnFull {
		policy = queue.DropOnFull
	}
	f.queue = queue.New(f.cfg.QueueDepth, policy, f.state.AddDrop)
	f.bridge.SetTarget(f.queue)

	f.watchDone = make(chan struct{})
	go f.watch(ctx, f.watchDone)

	f.setPhase(PhaseInitializing)
	f.resolveIdentity()
	f.resolver.Resolve()
	f.advance()
}

// NetworkChanged reports that an interface address was acquired or changed.
// It never blocks.
func (f *Forwarder) NetworkChanged() {
	f.resolver.Notify()
}

func (f *Forwarder) watch(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.resolver.Events():
			f.networkChanged(ctx)
		}
	}
}

func (f *Forwarder) networkChanged(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	f.resolveIdentity()
	if target, ok := f.resolver.Lookup(); ok {
		log.Printf("forwarder: broadcast target %s", target)
	}
	f.advance()
}

func (f *Forwarder) resolveIdentity() {
	if r, ok := f.identity.(identityResolver); ok && f.identity.Hostname() == "" {
		if name, err := r.Resolve(); err == nil {
			log.Printf("forwarder: host identity %s", name)
		}
	}
}

// advance moves Initializing towards Running as far as resources allow and
// retries a dormant control socket. Called with f.mu held.
func (f *Forwarder) advance() {
	if f.tx == nil {
		conn, err := f.listenTx()
		if err != nil {
			log.Printf("forwarder: transport socket unavailable: %v", err)
			return
		}
		f.tx = conn
	}
	if f.rx == nil {
		conn, err := f.listenRx()
		if err != nil {
			if !f.rxFailed {
				log.Printf("forwarder: control socket unavailable, listener dormant: %v", err)
			}
			f.rxFailed = true
		} else {
			f.rx = conn
			f.rxFailed = false
		}
	}

	if f.Phase() == PhaseInitializing {
		if !f.state.Snapshot().BroadcastReady {
			return
		}
		f.startDispatcher()
		if f.rx != nil {
			f.startListener()
		}
		f.bridge.Enable(true)
		f.bridge.Install()
		f.setPhase(PhaseRunning)
		return
	}

	if f.Phase() == PhaseRunning && f.rx != nil && f.listener == nil {
		f.startListener()
	}
}

func (f *Forwarder) startDispatcher() {
	d := dispatch.New(f.queue, f.state, f.tx)
	f.dispatcher = d
	ctx := f.ctx
	f.dispatchTasks.Add(1)
	f.group.Go(func() error {
		defer f.dispatchTasks.Add(-1)
		return d.Run(ctx)
	})
}

func (f *Forwarder) startListener() {
	l := control.NewListener(f.rx, f.handler, control.ListenerConfig{ReadTimeout: f.cfg.ReadTimeout})
	f.listener = l
	ctx := f.ctx
	f.listenTasks.Add(1)
	f.group.Go(func() error {
		defer f.listenTasks.Add(-1)
		return l.Run(ctx)
	})
}

// Stop tears the forwarder down: it uninstalls the capture bridge, ends
// both tasks, closes both sockets, discards every queued line and resets
// the destination state, in that order. Lines still queued or being sent
// are abandoned; Stop does not wait for their delivery. Stop is idempotent
// and returns once teardown is complete.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	switch f.Phase() {
	case PhaseInitializing, PhaseRunning:
	default:
		f.mu.Unlock()
		return
	}

	f.bridge.Enable(false)
	f.bridge.Uninstall()

	f.cancel()
	if err := f.group.Wait(); err != nil {
		log.Printf("forwarder: task exited: %v", err)
	}

	if f.tx != nil {
		f.tx.Close()
	}
	if f.rx != nil {
		f.rx.Close()
	}
	f.queue.Close()
	f.state.Reset()

	f.tx, f.rx = nil, nil
	f.dispatcher, f.listener = nil, nil
	f.rxFailed = false
	f.setPhase(PhaseStopped)
	done := f.watchDone
	f.mu.Unlock()

	<-done
}

// Bind switches delivery to a unicast peer. It rejects anything but an IPv4
// address and port 0.
func (f *Forwarder) Bind(ip string, port uint16) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() || port == 0 {
		return false
	}
	f.state.Bind(netip.AddrPortFrom(addr, port))
	return true
}

// Unbind returns to broadcast delivery.
func (f *Forwarder) Unbind() { f.state.Unbind() }

// SetBroadcastEnabled toggles broadcast delivery.
func (f *Forwarder) SetBroadcastEnabled(on bool) { f.state.SetBroadcastEnabled(on) }

// DropCount returns the number of lines lost to a full queue since the last
// Start.
func (f *Forwarder) DropCount() uint64 { return f.state.Drops() }

// Hostname returns the host identity, or "" while it is unknown.
func (f *Forwarder) Hostname() string { return f.identity.Hostname() }

// Sink is the writer that feeds the forwarder. Every line reaches the host
// log output in every phase; while running a copy is also queued.
func (f *Forwarder) Sink() capture.Sink { return f.bridge }

// Logf writes a formatted line through the capture bridge.
func (f *Forwarder) Logf(format string, args ...any) {
	_, _ = f.bridge.Logf(format, args...)
}

// ControlAddr returns the bound control socket address, if any.
func (f *Forwarder) ControlAddr() (netip.AddrPort, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rx == nil {
		return netip.AddrPort{}, false
	}
	return f.rx.LocalAddr().(*net.UDPAddr).AddrPort(), true
}

// Status reports the destination state together with task counters.
func (f *Forwarder) Status() model.Status {
	snap := f.state.Snapshot()
	st := model.Status{
		Phase:            f.Phase().String(),
		Host:             f.Hostname(),
		Mode:             snap.Mode.String(),
		BroadcastEnabled: snap.BroadcastEnabled,
		BroadcastReady:   snap.BroadcastReady,
		UnicastReady:     snap.UnicastReady,
		Drops:            snap.Drops,
		Listening:        f.listenTasks.Load() > 0,
	}
	if snap.BroadcastReady {
		st.Broadcast = snap.Broadcast.String()
	}
	if snap.UnicastReady {
		st.Unicast = snap.Unicast.String()
	}

	f.mu.Lock()
	d, q := f.dispatcher, f.queue
	f.mu.Unlock()
	if d != nil {
		st.Sent = d.Sent()
		st.Unrouted = d.Unrouted()
		st.SendErrors = d.SendErrors()
	}
	if q != nil {
		st.Queued = q.Len()
		st.QueueCapacity = q.Cap()
	}
	return st
}

// StatusLine renders the status reply of the control protocol.
func (f *Forwarder) StatusLine() string {
	return control.FormatStatus(f.Hostname(), f.state.Snapshot())
}

// String describes the forwarder for log output.
func (f *Forwarder) String() string {
	return fmt.Sprintf("forwarder(%s, log port %d, control port %d)", f.Phase(), f.cfg.LogPort, f.cfg.ControlPort)
}

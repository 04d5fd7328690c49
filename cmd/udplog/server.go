package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/udplog/internal/discovery"
	"github.com/tinytelemetry/udplog/internal/forwarder"
	"github.com/tinytelemetry/udplog/internal/hostid"
	"github.com/tinytelemetry/udplog/internal/httpserver"
	"github.com/tinytelemetry/udplog/internal/logsource"
	"github.com/tinytelemetry/udplog/internal/netwatch"
	"golang.org/x/sync/errgroup"
)

// runServer starts the forwarder, its local inputs and the admin API, and
// blocks until a signal arrives or every input has closed.
func runServer(cfg appConfig) error {
	ring, cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	var identity forwarder.HostIdentity
	if cfg.Hostname != "" {
		identity = hostid.Static(cfg.Hostname)
	} else {
		identity = hostid.New(cfg.HostPrefix)
	}

	fwd := forwarder.New(cfg.forwarderConfig(), forwarder.Options{Identity: identity})
	fwd.Start()
	defer fwd.Stop()

	poller := netwatch.NewPoller(fwd.NetworkChanged, netwatch.Config{Interval: cfg.NetPollInterval})
	poller.Start()
	defer poller.Stop()

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		var logs httpserver.LogDumper
		if ring != nil {
			logs = ring.Dump
		}
		apiServer := httpserver.NewServer(cfg.APIAddr, fwd, logs)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	sources := buildSources(ctx, buildInputPlugins(InputPluginConfig{
		TCPEnabled:  cfg.TCPEnabled,
		TCPAddr:     cfg.TCPAddr,
		MaxLineSize: logsource.DefaultStdinMaxLineSize,
		BufferSize:  cfg.InputBufferSize,
	}))
	pump := newInputPump(sources, fwd.Sink())

	printStartupBanner(cfg, fwd, pump.Names())

	g, gctx := errgroup.WithContext(ctx)

	// Every input line goes out through the host log output, which the
	// forwarder captures once it is running.
	if pump.HasSources() {
		g.Go(func() error {
			return pump.Run(gctx)
		})
	}

	if cfg.MDNSEnabled {
		g.Go(func() error {
			advertise(gctx, fwd, cfg)
			return nil
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	pump.Stop()
	pump.logTotals()

	// If we reach here, graceful shutdown succeeded within the deadline.
	// The signal goroutine (if active) dies with the process.
	signal.Stop(sigCh)

	return nil
}

// buildSources starts every enabled plugin and falls back to stdin when
// nothing else is configured and stdin is piped.
func buildSources(ctx context.Context, plugins []InputSourcePlugin) []NamedLogSource {
	sources := make([]NamedLogSource, 0, len(plugins))
	var fallback InputSourcePlugin
	for _, plugin := range plugins {
		if plugin.Name() == "stdin" {
			fallback = plugin
			continue
		}
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Printf("server: input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}

	if len(sources) == 0 && fallback != nil && fallback.Enabled() {
		if src, err := fallback.Build(ctx); err == nil {
			sources = append(sources, src)
		}
	}
	return sources
}

// advertise answers mDNS queries for the host identity once it is known and
// registers the agent as a DNS-SD service on the control port.
func advertise(ctx context.Context, fwd *forwarder.Forwarder, cfg appConfig) {
	ticker := time.NewTicker(cfg.NetPollInterval)
	defer ticker.Stop()

	for fwd.Hostname() == "" {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	host := fwd.Hostname()

	responder, err := discovery.Advertise(host)
	if err != nil {
		log.Printf("server: mdns advertise: %v", err)
	} else {
		defer responder.Close()
		log.Printf("server: answering mdns queries for %s", responder.Name())
	}

	service, err := discovery.Register(host, cfg.ControlPort, serviceText(cfg))
	if err != nil {
		log.Printf("server: dns-sd register: %v", err)
	} else {
		defer service.Close()
		log.Printf("server: registered %s as %s on port %d", service.Instance(), discovery.ServiceType, cfg.ControlPort)
	}

	<-ctx.Done()
}

// serviceText is the DNS-SD TXT record published with the control port.
func serviceText(cfg appConfig) []string {
	return []string{
		fmt.Sprintf("log_port=%d", cfg.LogPort),
		"version=" + version,
	}
}

func printStartupBanner(cfg appConfig, fwd *forwarder.Forwarder, inputs []string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")
	pending := yellow.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦ ╦╔╦╗╔═╗╦  ╔═╗╔═╗
    ║ ║ ║║╠═╝║  ║ ║║ ╦
    ╚═╝═╩╝╩  ╩═╝╚═╝╚═╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Forwarder
	st := fwd.Status()
	lines = append(lines, bold.Render("    Forwarder"))
	lines = append(lines, "")

	state := check
	if fwd.Phase() != forwarder.PhaseRunning {
		state = pending
	}
	lines = append(lines, fmt.Sprintf("    %s  Phase          %s", state, dim.Render(st.Phase)))

	host := st.Host
	if host == "" {
		host = "(pending)"
	}
	lines = append(lines, fmt.Sprintf("    %s  Host           %s", check, cyan.Render(host)))

	if st.BroadcastReady {
		lines = append(lines, fmt.Sprintf("    %s  Log Target     %s", check, cyan.Render(st.Broadcast)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Log Target     %s", pending, dim.Render(fmt.Sprintf("waiting for network (port %d)", cfg.LogPort))))
	}

	if addr, ok := fwd.ControlAddr(); ok {
		lines = append(lines, fmt.Sprintf("    %s  Control        %s", check, cyan.Render(addr.String())))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Control        %s", pending, dim.Render(fmt.Sprintf("dormant (port %d)", cfg.ControlPort))))
	}

	if cfg.MDNSEnabled {
		lines = append(lines, fmt.Sprintf("    %s  mDNS           %s", check, dim.Render("enabled, "+discovery.ServiceType)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  mDNS           %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	// Inputs
	lines = append(lines, bold.Render("    Inputs"))
	lines = append(lines, "")

	if cfg.TCPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  TCP Input      %s", check, cyan.Render(cfg.TCPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  TCP Input      %s", dot, dim.Render("disabled")))
	}
	if len(inputs) > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Active         %s", check, dim.Render(strings.Join(inputs, ", "))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Active         %s", dot, dim.Render("agent log only")))
	}
	lines = append(lines, "")

	// Admin
	lines = append(lines, bold.Render("    Admin"))
	lines = append(lines, "")

	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}

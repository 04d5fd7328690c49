package forwarder

import (
	"net"
	"time"

	"github.com/tinytelemetry/udplog/internal/capture"
	"github.com/tinytelemetry/udplog/internal/model"
	"github.com/tinytelemetry/udplog/internal/resolver"
)

// Config holds the forwarder's tunables.
type Config struct {
	// LogPort is the destination port of broadcast datagrams.
	LogPort int
	// ControlPort is where the control listener binds.
	ControlPort int
	// ControlHost restricts the control listener to one local address.
	ControlHost string
	// MaxLine is the capacity of one forwarded line, prefix included.
	MaxLine int
	// QueueDepth is the number of lines buffered for the dispatcher.
	QueueDepth int
	// DropOnFull discards lines on a full queue instead of blocking the
	// logging caller.
	DropOnFull bool
	// Prefix prepends "[host] " to every line.
	Prefix bool
	// HostPrefix is the first part of the derived host identity and the
	// line prefix used until that identity is known.
	HostPrefix string
	// ReadTimeout bounds each control receive.
	ReadTimeout time.Duration
	// Interfaces restricts and orders the interfaces used for broadcast
	// resolution. Empty means every up, non-loopback interface.
	Interfaces []string
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		LogPort:     model.DefaultLogPort,
		ControlPort: model.DefaultControlPort,
		MaxLine:     model.DefaultMaxLine,
		QueueDepth:  model.DefaultQueueDepth,
		DropOnFull:  true,
		Prefix:      true,
		HostPrefix:  model.DefaultHostPrefix,
		ReadTimeout: model.DefaultReadTimeout,
	}
}

// withDefaults fills unset numeric fields and HostPrefix. Booleans have no
// unset state and are left alone.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LogPort <= 0 {
		c.LogPort = d.LogPort
	}
	if c.ControlPort <= 0 {
		c.ControlPort = d.ControlPort
	}
	if c.MaxLine <= 0 {
		c.MaxLine = d.MaxLine
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = d.QueueDepth
	}
	if c.HostPrefix == "" {
		c.HostPrefix = d.HostPrefix
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	return c
}

// HostIdentity reports the name used in line prefixes and status replies.
// An empty name means it is not known yet.
type HostIdentity interface {
	Hostname() string
}

type identityResolver interface {
	Resolve() (string, error)
}

// ListenFunc opens one UDP socket.
type ListenFunc func() (*net.UDPConn, error)

// Options injects the collaborators of a forwarder. Zero fields get the
// system defaults.
type Options struct {
	// Hook swaps the host log output. Defaults to the standard logger.
	Hook capture.Hook
	// Identity names the host. Defaults to a MAC-derived identity.
	Identity HostIdentity
	// Source lists interface addresses for broadcast resolution.
	Source resolver.Source
	// ListenTransport opens the sending socket.
	ListenTransport ListenFunc
	// ListenControl opens the control socket.
	ListenControl ListenFunc
}

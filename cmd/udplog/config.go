package main

import (
	"time"

	"github.com/tinytelemetry/udplog/internal/forwarder"
	"github.com/tinytelemetry/udplog/internal/model"
	"github.com/tinytelemetry/udplog/internal/netwatch"
)

const (
	defaultBindHost        = "127.0.0.1"
	defaultLogPort         = model.DefaultLogPort
	defaultControlPort     = model.DefaultControlPort
	defaultMaxLine         = model.DefaultMaxLine
	defaultQueueDepth      = model.DefaultQueueDepth
	defaultReadTimeout     = model.DefaultReadTimeout
	defaultHostPrefix      = model.DefaultHostPrefix
	defaultNetPollInterval = netwatch.DefaultInterval
	defaultTCPPort         = 9996
	defaultAPIPort         = 9997
	defaultInputBufferSize = 1024
	defaultLogRingSize     = 1024 * 1024
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	LogPort         int           `mapstructure:"log-port" yaml:"log-port"`
	ControlPort     int           `mapstructure:"control-port" yaml:"control-port"`
	ControlHost     string        `mapstructure:"control-host" yaml:"control-host"`
	MaxLine         int           `mapstructure:"max-line" yaml:"max-line"`
	QueueDepth      int           `mapstructure:"queue-depth" yaml:"queue-depth"`
	DropOnFull      bool          `mapstructure:"drop-on-full" yaml:"drop-on-full"`
	Prefix          bool          `mapstructure:"prefix" yaml:"prefix"`
	HostPrefix      string        `mapstructure:"host-prefix" yaml:"host-prefix"`
	Hostname        string        `mapstructure:"hostname" yaml:"hostname"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout" yaml:"read-timeout"`
	Interfaces      []string      `mapstructure:"interfaces" yaml:"interfaces"`
	NetPollInterval time.Duration `mapstructure:"net-poll-interval" yaml:"net-poll-interval"`
	MDNSEnabled     bool          `mapstructure:"mdns-enabled" yaml:"mdns-enabled"`
	Host            string        `mapstructure:"host" yaml:"host"`
	TCPEnabled      bool          `mapstructure:"tcp-enabled" yaml:"tcp-enabled"`
	TCPPort         int           `mapstructure:"tcp-port" yaml:"tcp-port"`
	TCPAddr         string        `mapstructure:"tcp-addr" yaml:"tcp-addr"`
	APIEnabled      bool          `mapstructure:"api-enabled" yaml:"api-enabled"`
	APIPort         int           `mapstructure:"api-port" yaml:"api-port"`
	APIAddr         string        `mapstructure:"api-addr" yaml:"api-addr"`
	InputBufferSize int           `mapstructure:"input-buffer-size" yaml:"input-buffer-size"`
	ConfigPath      string        `mapstructure:"-" yaml:"-"` // not from config file
}

func (c appConfig) forwarderConfig() forwarder.Config {
	return forwarder.Config{
		LogPort:     c.LogPort,
		ControlPort: c.ControlPort,
		ControlHost: c.ControlHost,
		MaxLine:     c.MaxLine,
		QueueDepth:  c.QueueDepth,
		DropOnFull:  c.DropOnFull,
		Prefix:      c.Prefix,
		HostPrefix:  c.HostPrefix,
		ReadTimeout: c.ReadTimeout,
		Interfaces:  c.Interfaces,
	}
}

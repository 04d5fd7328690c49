package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool
	var printConfig bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/udplog/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&printConfig, "print-config", false, "print the effective configuration as YAML and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("udplog - UDP log forwarder\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if printConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding config: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	v := viper.New()
	v.SetEnvPrefix("UDPLOG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("log-port", defaultLogPort)
	v.SetDefault("control-port", defaultControlPort)
	v.SetDefault("control-host", "")
	v.SetDefault("max-line", defaultMaxLine)
	v.SetDefault("queue-depth", defaultQueueDepth)
	v.SetDefault("drop-on-full", true)
	v.SetDefault("prefix", true)
	v.SetDefault("host-prefix", defaultHostPrefix)
	v.SetDefault("hostname", "")
	v.SetDefault("read-timeout", defaultReadTimeout)
	v.SetDefault("interfaces", []string{})
	v.SetDefault("net-poll-interval", defaultNetPollInterval)
	v.SetDefault("mdns-enabled", true)
	v.SetDefault("host", defaultBindHost)
	v.SetDefault("tcp-enabled", false)
	v.SetDefault("tcp-port", defaultTCPPort)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("input-buffer-size", defaultInputBufferSize)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".config", "udplog", "config.yml"))
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
				return cfg, err
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if _, err := os.Stat(v.ConfigFileUsed()); err == nil {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	for _, p := range []struct {
		name string
		port int
	}{
		{"log-port", cfg.LogPort},
		{"control-port", cfg.ControlPort},
		{"tcp-port", cfg.TCPPort},
		{"api-port", cfg.APIPort},
	} {
		if p.port <= 0 || p.port > 65535 {
			return cfg, fmt.Errorf("invalid %s: %d", p.name, p.port)
		}
	}
	if cfg.MaxLine < 16 {
		return cfg, fmt.Errorf("invalid max-line: %d (minimum 16)", cfg.MaxLine)
	}
	if cfg.QueueDepth <= 0 {
		return cfg, fmt.Errorf("invalid queue-depth: %d", cfg.QueueDepth)
	}
	if cfg.ReadTimeout <= 0 {
		return cfg, fmt.Errorf("invalid read-timeout: %s", cfg.ReadTimeout)
	}
	if cfg.NetPollInterval <= 0 {
		return cfg, fmt.Errorf("invalid net-poll-interval: %s", cfg.NetPollInterval)
	}
	if cfg.ControlHost != "" && net.ParseIP(cfg.ControlHost).To4() == nil {
		return cfg, fmt.Errorf("invalid control-host: %q is not an IPv4 address", cfg.ControlHost)
	}

	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TCPPort))
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tinytelemetry/udplog/internal/model"
)

const (
	defaultTxPort      = model.DefaultLogPort
	defaultControlPort = model.DefaultControlPort
	defaultMDNSTimeout = 3 * time.Second
)

// cliConfig is the effective configuration of one invocation.
type cliConfig struct {
	ControlPort  int           `mapstructure:"control-port"`
	TxPort       int           `mapstructure:"tx-port"`
	ReplyTimeout time.Duration `mapstructure:"reply-timeout"`
	MDNSTimeout  time.Duration `mapstructure:"mdns-timeout"`
	NoColor      bool          `mapstructure:"no-color"`
}

// loadConfig layers defaults, the optional config file, UDPLOG_ environment
// variables and the command's flags, in increasing precedence.
func loadConfig(configPath string, fs *pflag.FlagSet) (cliConfig, error) {
	var cfg cliConfig

	v := viper.New()
	v.SetEnvPrefix("UDPLOG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("control-port", defaultControlPort)
	v.SetDefault("tx-port", defaultTxPort)
	v.SetDefault("reply-timeout", model.DefaultReplyTimeout)
	v.SetDefault("mdns-timeout", defaultMDNSTimeout)
	v.SetDefault("no-color", false)

	if fs != nil {
		for key, flagName := range map[string]string{
			"tx-port":  "tx-port",
			"no-color": "no-color",
		} {
			if f := fs.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, err
				}
			}
		}
		// listen names its port --port; it is the same receive port.
		if f := fs.Lookup("port"); f != nil {
			if err := v.BindPFlag("tx-port", f); err != nil {
				return cfg, err
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".config", "udplog", "cli.yml"))
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

	for _, p := range []struct {
		name string
		port int
	}{
		{"control-port", cfg.ControlPort},
		{"tx-port", cfg.TxPort},
	} {
		if p.port <= 0 || p.port > 65535 {
			return cfg, fmt.Errorf("invalid %s: %d", p.name, p.port)
		}
	}
	if cfg.ReplyTimeout <= 0 {
		return cfg, fmt.Errorf("invalid reply-timeout: %s", cfg.ReplyTimeout)
	}
	if cfg.MDNSTimeout <= 0 {
		return cfg, fmt.Errorf("invalid mdns-timeout: %s", cfg.MDNSTimeout)
	}
	return cfg, nil
}

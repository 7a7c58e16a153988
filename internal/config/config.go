// Package config loads the zenohdump configuration file. Every key is
// optional; flags override file values where both exist.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the capture adapter settings that are not part of the extcap
// invocation itself.
type Config struct {
	// Locator is the router endpoint (host:port). Empty means scout for one.
	Locator string `mapstructure:"locator"`
	// ScoutAddr is the UDP address scout probes are broadcast to.
	ScoutAddr string `mapstructure:"scout_addr"`
	// ScoutTimeout bounds how long scouting waits for a router reply.
	ScoutTimeout time.Duration `mapstructure:"scout_timeout"`
	// Snaplen is the pcap snapshot length.
	Snaplen uint32 `mapstructure:"snaplen"`
	// Journal is the path of the SQLite capture journal. Empty disables it.
	Journal string `mapstructure:"journal"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`
	// LogFile receives rotated log output in addition to stderr.
	LogFile string `mapstructure:"log_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ScoutAddr:    ":7446",
		ScoutTimeout: 3 * time.Second,
		Snaplen:      65535,
		LogLevel:     "info",
	}
}

// Load reads the configuration file at path. When path is empty, a
// zenohdump.yaml is searched in the working directory, ~/.config/zenohdump and
// /etc/zenohdump; a missing file then just yields the defaults. An explicit
// path that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetDefault("scout_addr", cfg.ScoutAddr)
	v.SetDefault("scout_timeout", cfg.ScoutTimeout)
	v.SetDefault("snaplen", cfg.Snaplen)
	v.SetDefault("log_level", cfg.LogLevel)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("zenohdump")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/zenohdump")
		v.AddConfigPath("/etc/zenohdump")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

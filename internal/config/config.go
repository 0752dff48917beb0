// Package config provides configuration management for the mail exchange server.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// FileConfig is the top-level wrapper for the configuration file.
// Shared settings live under [server]; daemon-specific settings under [mailxd],
// which take precedence.
type FileConfig struct {
	Server ServerConfig `toml:"server"`
	Mailxd Config       `toml:"mailxd"`
}

// ServerConfig holds shared settings usable by other mail services reading
// the same file.
type ServerConfig struct {
	Hostname string `toml:"hostname"`
	DataDir  string `toml:"data_dir"`
}

// Config holds the mail exchange server configuration.
type Config struct {
	// Hostname is the mail domain this server accepts delivery for.
	Hostname string `toml:"hostname"`

	// Listen is the TCP address the server accepts connections on.
	Listen string `toml:"listen"`

	// DataDir is the root directory holding one subdirectory per user plus
	// the reserved lost-mail directory.
	DataDir string `toml:"data_dir"`

	LogLevel string        `toml:"log_level"`
	Limits   LimitsConfig  `toml:"limits"`
	Metrics  MetricsConfig `toml:"metrics"`
}

// LimitsConfig defines resource limits for the server.
type LimitsConfig struct {
	MaxConnections int `toml:"max_connections"`
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Hostname: "localhost",
		Listen:   ":2125",
		DataDir:  "./data",
		LogLevel: "info",
		Limits: LimitsConfig{
			MaxConnections: 100,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9101",
			Path:    "/metrics",
		},
	}
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return errors.New("hostname is required")
	}

	if strings.ContainsAny(c.Hostname, "@ ") {
		return fmt.Errorf("hostname %q must be a bare domain name", c.Hostname)
	}

	if c.Listen == "" {
		return errors.New("listen address is required")
	}

	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}

	if c.Limits.MaxConnections <= 0 {
		return errors.New("max_connections must be positive")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	return nil
}

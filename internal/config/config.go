// Package config loads process configuration and the declarative rule pack.
// Everything here is structured data, never executable code; malformed rules
// are rejected at load time so they can never reach the evaluation path.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration for the loanflow daemon.
type Config struct {
	DBPath             string `yaml:"db_path"`
	RulePackPath       string `yaml:"rule_pack_path"`
	TickSeconds        int    `yaml:"tick_seconds"`
	DispatchTimeoutSec int    `yaml:"dispatch_timeout_seconds"`
	BackoffBaseSec     int    `yaml:"backoff_base_seconds"`
	BackoffCapSec      int    `yaml:"backoff_cap_seconds"`
	LeaseTimeoutSec    int    `yaml:"lease_timeout_seconds"`
	LeaseBatch         int    `yaml:"lease_batch"`

	// MetricsAddr enables the Prometheus exposition listener when non-empty,
	// e.g. "127.0.0.1:9190". Empty means no listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in process configuration.
func Default() Config {
	return Config{
		DBPath:             "loanflow.db",
		TickSeconds:        60,
		DispatchTimeoutSec: 10,
		BackoffBaseSec:     60,
		BackoffCapSec:      3600,
		LeaseTimeoutSec:    300,
		LeaseBatch:         100,
	}
}

// Load reads process configuration from a YAML file, applying defaults for
// omitted fields.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.TickSeconds <= 0 {
		return cfg, fmt.Errorf("tick_seconds must be positive, got %d", cfg.TickSeconds)
	}
	return cfg, nil
}

// TickInterval returns the polling loop interval.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

// DispatchTimeout returns the per-send timeout.
func (c Config) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutSec) * time.Second
}

// BackoffBase returns the retry backoff base delay.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSec) * time.Second
}

// BackoffCap returns the retry backoff ceiling.
func (c Config) BackoffCap() time.Duration {
	return time.Duration(c.BackoffCapSec) * time.Second
}

// LeaseTimeout returns how long a dispatch lease may be held before the tick
// reclaims it.
func (c Config) LeaseTimeout() time.Duration {
	return time.Duration(c.LeaseTimeoutSec) * time.Second
}

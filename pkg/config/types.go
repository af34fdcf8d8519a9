package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Janitor JanitorConfig `yaml:"janitor"`
	Watcher WatcherConfig `yaml:"watcher"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// CacheConfig locates the shared cache root and its key file.
type CacheConfig struct {
	Root    string `yaml:"root"`
	KeyFile string `yaml:"key_file"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Backend    string `yaml:"backend"` // fs | pebble
	PebblePath string `yaml:"pebble_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// JanitorConfig holds configuration for the maintenance sweep runner.
type JanitorConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Cron         string   `yaml:"cron"`
	DedupeMaxAge Duration `yaml:"dedupe_max_age"`
	DumpMaxAge   Duration `yaml:"dump_max_age"`
	TempMaxAge   Duration `yaml:"temp_max_age"`
	DryRun       bool     `yaml:"dry_run"`
}

// WatcherConfig tunes the filesystem load trigger.
type WatcherConfig struct {
	Debounce Duration `yaml:"debounce"`
	RPS      float64  `yaml:"rps"`
	Burst    int      `yaml:"burst"`
}

// MetricsConfig holds the optional metrics listener address. Empty
// disables the listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

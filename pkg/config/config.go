package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend returns the configured store backend, defaulting to "fs".
func (c *Config) Backend() string {
	b := strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if b == "" {
		return "fs"
	}
	return b
}

// JanitorCron returns the sweep schedule, defaulting to 03:00 daily.
func (c *Config) JanitorCron() string {
	if s := strings.TrimSpace(c.Janitor.Cron); s != "" {
		return s
	}
	return "0 3 * * *"
}

// DedupeMaxAge returns how long dedupe records are kept before a sweep
// removes them. Defaults to 14 days.
func (c *Config) DedupeMaxAge() time.Duration {
	return orDefault(c.Janitor.DedupeMaxAge, 14*24*time.Hour)
}

// DumpMaxAge returns how long untouched config dump replicas are kept.
// Defaults to 30 days.
func (c *Config) DumpMaxAge() time.Duration {
	return orDefault(c.Janitor.DumpMaxAge, 30*24*time.Hour)
}

// TempMaxAge returns how long orphaned temp files are kept. Defaults to 1h.
func (c *Config) TempMaxAge() time.Duration {
	return orDefault(c.Janitor.TempMaxAge, time.Hour)
}

// Debounce returns the watcher debounce window. Defaults to 200ms.
func (c *Config) Debounce() time.Duration {
	return orDefault(c.Watcher.Debounce, 200*time.Millisecond)
}

// WatchRPS returns the sustained load-trigger rate. Defaults to 1/s.
func (c *Config) WatchRPS() float64 {
	if c.Watcher.RPS > 0 {
		return c.Watcher.RPS
	}
	return 1
}

// WatchBurst returns the load-trigger burst allowance. Defaults to 2.
func (c *Config) WatchBurst() int {
	if c.Watcher.Burst > 0 {
		return c.Watcher.Burst
	}
	return 2
}

func orDefault(d Duration, def time.Duration) time.Duration {
	if v := d.Duration(); v > 0 {
		return v
	}
	return def
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CommandFlags holds the command-line flags shared by the extcache
// subcommands along with which flags were explicitly set.
type CommandFlags struct {
	Root        string
	KeyFile     string
	ConfigPath  string
	MetricsAddr string
	Set         map[string]bool
}

// ParseCommandFlags defines the shared flags on fs, parses args, and
// returns their values along with which flags were explicitly set.
func ParseCommandFlags(fs *flag.FlagSet, args []string) (*CommandFlags, error) {
	rootPtr := fs.String("root", "", "cache root directory")
	keyPtr := fs.String("key-file", "", "path to the symmetric key file")
	cfgPtr := fs.String("config", "./config.yaml", "path to config file")
	metricsPtr := fs.String("metrics-addr", "", "serve /metrics and /healthz on this address")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return &CommandFlags{
		Root:        *rootPtr,
		KeyFile:     *keyPtr,
		ConfigPath:  *cfgPtr,
		MetricsAddr: *metricsPtr,
		Set:         set,
	}, nil
}

// LoadEnvOverrides applies environment overrides onto the provided cfg and
// reports whether any env vars were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false

	if v := os.Getenv("EXTCACHE_ROOT"); v != "" {
		envUsed = true
		cfg.Cache.Root = v
	}
	if v := os.Getenv("EXTCACHE_KEY_FILE"); v != "" {
		envUsed = true
		cfg.Cache.KeyFile = v
	}
	if v := os.Getenv("EXTCACHE_BACKEND"); v != "" {
		envUsed = true
		cfg.Store.Backend = v
	}
	if v := os.Getenv("EXTCACHE_PEBBLE_PATH"); v != "" {
		envUsed = true
		cfg.Store.PebblePath = v
	}
	if v := os.Getenv("EXTCACHE_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EXTCACHE_JANITOR_ENABLED"); v != "" {
		envUsed = true
		vl := strings.ToLower(strings.TrimSpace(v))
		cfg.Janitor.Enabled = vl == "1" || vl == "true" || vl == "yes"
	}
	if v := os.Getenv("EXTCACHE_JANITOR_CRON"); v != "" {
		envUsed = true
		cfg.Janitor.Cron = v
	}
	if v := os.Getenv("EXTCACHE_DEDUPE_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Janitor.DedupeMaxAge = Duration(d)
		}
	}
	if v := os.Getenv("EXTCACHE_DUMP_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Janitor.DumpMaxAge = Duration(d)
		}
	}
	if v := os.Getenv("EXTCACHE_TEMP_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Janitor.TempMaxAge = Duration(d)
		}
	}
	if v := os.Getenv("EXTCACHE_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Watcher.Debounce = Duration(d)
		}
	}
	if v := os.Getenv("EXTCACHE_WATCH_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Watcher.RPS = f
		}
	}
	if v := os.Getenv("EXTCACHE_WATCH_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Watcher.Burst = n
		}
	}
	if v := os.Getenv("EXTCACHE_METRICS_ADDR"); v != "" {
		envUsed = true
		cfg.Metrics.Addr = v
	}
	return envUsed
}

// LoadEffective loads config from the given path and applies environment
// overrides. A missing config file is not fatal; env and flags may carry
// the whole configuration.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	return cfg, envUsed, nil
}

// ResolveConfigPath decides the config file path using the flag-provided value
// and the environment variable `EXTCACHE_CONFIG` when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("EXTCACHE_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

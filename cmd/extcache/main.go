package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"extcache/internal/janitor"
	"extcache/pkg/banner"
	"extcache/pkg/cache"
	"extcache/pkg/config"
	"extcache/pkg/keychain"
	"extcache/pkg/logger"
	"extcache/pkg/shutdown"
	"extcache/pkg/store"
	"extcache/pkg/watch"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")

	args := os.Args[1:]
	cmd := "watch"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("extcache "+cmd, flag.ExitOnError)
	var dryRun, yes bool
	switch cmd {
	case "sweep":
		fs.BoolVar(&dryRun, "dry-run", false, "report what would be removed without removing it")
	case "wipe":
		fs.BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	}
	flags, err := config.ParseCommandFlags(fs, args)
	if err != nil {
		os.Exit(2)
	}

	cfgPath := config.ResolveConfigPath(flags.ConfigPath, flags.Set["config"])
	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Flags win over config/env when explicitly set.
	root := cfg.Cache.Root
	if flags.Set["root"] {
		root = flags.Root
	}
	if root == "" {
		root = "./extcache-data"
	}
	keyFile := cfg.Cache.KeyFile
	if flags.Set["key-file"] {
		keyFile = flags.KeyFile
	}
	if keyFile == "" {
		keyFile = filepath.Join(root, ".key")
	}
	metricsAddr := cfg.Metrics.Addr
	if flags.Set["metrics-addr"] {
		metricsAddr = flags.MetricsAddr
	}

	logger.InitWithLevel(cfg.Logging.Level)
	defer logger.Sync()

	be, err := openBackend(cfg, root)
	if err != nil {
		shutdown.Abort("failed to open cache backend", err, root, 0)
	}
	defer be.Close()

	keys := keychain.NewFileProvider(keyFile)
	defer keys.Close()

	c := cache.New(be, keys)

	switch cmd {
	case "inspect":
		err = runInspect(c)
	case "sweep":
		err = runSweep(cfg, be, dryRun)
	case "wipe":
		err = runWipe(c, root, yes)
	case "watch":
		err = runWatch(cfg, c, be, root, keyFile, metricsAddr, cfgPath, envUsed, len(flags.Set) > 0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\nusage: extcache [watch|inspect|sweep|wipe] [flags]\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command_failed", "cmd", cmd, "error", err.Error())
		os.Exit(1)
	}
}

func openBackend(cfg *config.Config, root string) (store.Backend, error) {
	switch cfg.Backend() {
	case "fs":
		return store.NewFS(nil, root), nil
	case "pebble":
		p := cfg.Store.PebblePath
		if p == "" {
			p = filepath.Join(root, ".pebble")
		}
		return store.OpenPebble(p)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend())
	}
}

func runInspect(c *cache.Cache) error {
	s, err := c.Summarize()
	if err != nil {
		return err
	}
	fmt.Printf("buckets: %d\n", len(s.Buckets))
	for _, b := range s.Buckets {
		fmt.Printf("  %s  config=%d read=%d unread=%d dedupe=%d dumps=%d\n",
			b.Name, b.Config, b.Read, b.Unread, b.Dedupe, b.Dumps)
	}
	fmt.Printf("metadata: %v\n", s.HasMetadata)
	fmt.Printf("notification settings: %v\n", s.HasSettings)
	fmt.Printf("unread count: %d\n", s.Unread)
	return nil
}

func runSweep(cfg *config.Config, be store.Backend, dryRun bool) error {
	jan := janitor.New(be, janitor.Config{
		DedupeMaxAge: cfg.DedupeMaxAge(),
		DumpMaxAge:   cfg.DumpMaxAge(),
		TempMaxAge:   cfg.TempMaxAge(),
		DryRun:       dryRun || cfg.Janitor.DryRun,
	})
	res, err := jan.RunOnce(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("dedupe records removed: %d\n", res.DedupeRecords)
	fmt.Printf("dump replicas removed:  %d\n", res.Dumps)
	fmt.Printf("temp files removed:     %d\n", res.TempFiles)
	fmt.Printf("empty dirs removed:     %d\n", res.Dirs)
	return nil
}

func runWipe(c *cache.Cache, root string, yes bool) error {
	if !yes {
		fmt.Printf("wipe cache at %s? [y/N]: ", root)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
		default:
			fmt.Println("aborted")
			return nil
		}
	}
	return c.DeleteCache()
}

func runWatch(cfg *config.Config, c *cache.Cache, be store.Backend, root, keyFile, metricsAddr, cfgPath string, envUsed, flagsUsed bool) error {
	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	srcs := []string{}
	if flagsUsed {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}
	verStr := version
	if commit != "none" {
		verStr = verStr + " (" + commit + ")"
	}
	if buildDate != "unknown" {
		verStr = verStr + " @ " + buildDate
	}
	banner.Print(cfg, root, keyFile, strings.Join(srcs, ", "), verStr)

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("{\"status\":\"ok\"}"))
		})
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("metrics_listen_failed", "addr", metricsAddr, "error", err.Error())
			}
		}()
		logger.Info("metrics_listening", "addr", metricsAddr)
	}

	if cfg.Janitor.Enabled {
		jan := janitor.New(be, janitor.Config{
			DedupeMaxAge: cfg.DedupeMaxAge(),
			DumpMaxAge:   cfg.DumpMaxAge(),
			TempMaxAge:   cfg.TempMaxAge(),
			DryRun:       cfg.Janitor.DryRun,
		})
		cancelJan, err := janitor.Start(ctx, cfg.JanitorCron(), jan)
		if err != nil {
			return err
		}
		defer cancelJan()
	} else {
		logger.Info("janitor_disabled")
	}

	if err := os.MkdirAll(root, 0o700); err != nil {
		return err
	}

	// Drain whatever accumulated before the daemon came up.
	c.WillLoadMessages()
	if err := c.LoadMessages(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("initial_load_failed", "error", err.Error())
	}

	w, err := watch.New(root, cfg.Debounce(), cfg.WatchRPS(), cfg.WatchBurst(), func(ctx context.Context) {
		c.WillLoadMessages()
		if err := c.LoadMessages(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("load_failed", "error", err.Error())
		}
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

package banner

import (
	"fmt"

	"extcache/pkg/config"
)

const banner = `
███████╗██╗  ██╗████████╗ ██████╗ █████╗  ██████╗██╗  ██╗███████╗
██╔════╝╚██╗██╔╝╚══██╔══╝██╔════╝██╔══██╗██╔════╝██║  ██║██╔════╝
█████╗   ╚███╔╝    ██║   ██║     ███████║██║     ███████║█████╗
██╔══╝   ██╔██╗    ██║   ██║     ██╔══██║██║     ██╔══██║██╔══╝
███████╗██╔╝ ██╗   ██║   ╚██████╗██║  ██║╚██████╗██║  ██║███████╗
╚══════╝╚═╝  ╚═╝   ╚═╝    ╚═════╝╚═╝  ╚═╝ ╚═════╝╚═╝  ╚═╝╚══════╝
`

// Print writes the startup banner with the resolved runtime settings.
func Print(cfg *config.Config, root, keyFile, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Cache root: %s\n", root)
	fmt.Printf("Backend:    %s\n", cfg.Backend())
	fmt.Printf("Key file:   %s\n", keyFile)
	if version != "" {
		fmt.Printf("Version:    %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}

	fmt.Println("\n== Commands ===================================================")
	fmt.Println("extcache watch   - run the load daemon (watches for new records)")
	fmt.Println("extcache inspect - summarize cache contents and unread count")
	fmt.Println("extcache sweep   - prune expired records and orphaned temp files")
	fmt.Println("extcache wipe    - delete the whole cache")

	fmt.Println("\n== Production? =================================================")
	if cfg.Janitor.Enabled {
		fmt.Printf("- Janitor: enabled (cron=%s)\n", cfg.JanitorCron())
	} else {
		fmt.Println("- Janitor: disabled (stale records accumulate; enable janitor.enabled)")
	}
	if cfg.Metrics.Addr != "" {
		fmt.Printf("- Metrics: %s/metrics\n", cfg.Metrics.Addr)
	} else {
		fmt.Println("- Metrics: disabled (set metrics.addr or --metrics-addr)")
	}
	if cfg.Backend() == "pebble" {
		fmt.Println("- Pebble backend: single-process only; use fs for cross-process caches")
	}

	fmt.Println("\n== Logs: =================================================")
}

// Package janitor prunes cache debris on a cron schedule: expired dedupe
// markers, stale config dump replicas, orphaned temp files from crashed
// writers, and the empty directories they leave behind.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"extcache/pkg/logger"
	"extcache/pkg/store"
)

// Config bounds what a sweep removes. A zero or negative age disables
// that class of pruning.
type Config struct {
	DedupeMaxAge time.Duration
	DumpMaxAge   time.Duration
	TempMaxAge   time.Duration
	DryRun       bool
}

// Janitor sweeps a cache backend.
type Janitor struct {
	be    store.Backend
	cfg   Config
	clock func() time.Time
}

func New(be store.Backend, cfg Config) *Janitor {
	return &Janitor{be: be, cfg: cfg, clock: time.Now}
}

// Start launches the sweep scheduler for the given cron expression and
// returns its cancel func.
func Start(ctx context.Context, cronExpr string, j *Janitor) (context.CancelFunc, error) {
	if !gronx.IsValid(cronExpr) {
		logger.Error("janitor_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid janitor cron expression: %s", cronExpr)
	}

	logger.Info("janitor_enabled", "cron", cronExpr,
		"dedupe_max_age", j.cfg.DedupeMaxAge.String(),
		"dump_max_age", j.cfg.DumpMaxAge.String(),
		"temp_max_age", j.cfg.TempMaxAge.String(),
		"dry_run", j.cfg.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, j)
	logger.Info("janitor_scheduler_started")
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured
// cron expression and sleeps until that time.
func runScheduler(ctx context.Context, cronExpr string, j *Janitor) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("janitor_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("janitor_nexttick_failed", "cron", cronExpr, "error", err.Error())
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("janitor_scheduler_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			runAndLog(ctx, j)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				logger.Info("janitor_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			runAndLog(ctx, j)
		case <-ctx.Done():
			logger.Info("janitor_scheduler_stopping")
			return
		}
	}
}

func runAndLog(ctx context.Context, j *Janitor) {
	res, err := j.RunOnce(ctx)
	if err != nil {
		logger.Error("janitor_run_error", "error", err.Error())
		return
	}
	logger.Info("janitor_run_complete",
		"dedupe_removed", res.DedupeRecords,
		"dumps_removed", res.Dumps,
		"temp_removed", res.TempFiles,
		"dirs_removed", res.Dirs,
		"dry_run", j.cfg.DryRun)
}

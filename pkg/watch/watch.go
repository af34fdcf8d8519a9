// Package watch turns filesystem activity under the cache root into load
// triggers. Writer processes drop records at arbitrary moments; the
// watcher debounces those bursts and rate-limits the resulting loads so a
// flood of writes costs one drain, not hundreds.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"extcache/pkg/logger"
)

// Watcher observes a cache root and invokes a trigger after quiet
// periods.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration
	limiter  *rate.Limiter
	trigger  func(ctx context.Context)
}

// New creates a watcher over root. Non-positive debounce, rps, or burst
// fall back to defaults.
func New(root string, debounce time.Duration, rps float64, burst int, trigger func(ctx context.Context)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 2
	}
	return &Watcher{
		fsw:      fsw,
		root:     root,
		debounce: debounce,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		trigger:  trigger,
	}, nil
}

// Run watches until ctx is cancelled or the underlying watcher dies.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	logger.Info("watch_started", "root", w.root, "debounce", w.debounce.String())

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch_stopping")
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(ev.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.limiter.Wait(ctx); err != nil {
				logger.Info("watch_stopping")
				return nil
			}
			logger.Debug("watch_triggered")
			w.trigger(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch_error", "error", err.Error())
		}
	}
}

// relevant filters out chmod noise and in-flight temp files. Only the
// rename that lands a finished record should count.
func relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	return !strings.HasPrefix(filepath.Base(ev.Name), ".")
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if name := filepath.Base(p); strings.HasPrefix(name, ".") && p != root {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

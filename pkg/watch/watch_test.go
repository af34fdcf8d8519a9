package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"extcache/pkg/watch"
)

func startWatcher(t *testing.T, root string, debounce time.Duration) (<-chan struct{}, context.CancelFunc) {
	t.Helper()
	hits := make(chan struct{}, 64)
	w, err := watch.New(root, debounce, 100, 10, func(context.Context) {
		hits <- struct{}{}
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("watcher did not stop")
		}
	})

	// give the watcher a moment to register the root
	time.Sleep(200 * time.Millisecond)
	return hits, cancel
}

func TestWatcherTriggersOnRecordWrite(t *testing.T) {
	root := t.TempDir()
	hits, _ := startWatcher(t, root, 50*time.Millisecond)

	dir := filepath.Join(root, "conversations", "b1", "unread")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "record"), []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case <-hits:
	case <-time.After(5 * time.Second):
		t.Fatalf("no trigger after record write")
	}
}

func TestWatcherSeesNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	hits, _ := startWatcher(t, root, 50*time.Millisecond)

	// the bucket tree appears only after watching begins
	dir := filepath.Join(root, "conversations", "b2", "read")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	// drain the triggers the directory creation itself produced
	settle := time.After(time.Second)
drain:
	for {
		select {
		case <-hits:
		case <-settle:
			break drain
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "late-record"), []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	select {
	case <-hits:
	case <-time.After(5 * time.Second):
		t.Fatalf("write inside a late directory never triggered")
	}
}

func TestWatcherIgnoresTempFiles(t *testing.T) {
	root := t.TempDir()
	hits, _ := startWatcher(t, root, 50*time.Millisecond)

	for _, name := range []string{".tmp-4f1d", ".hidden"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	select {
	case <-hits:
		t.Fatalf("hidden file activity triggered a load")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	root := t.TempDir()
	hits, _ := startWatcher(t, root, 150*time.Millisecond)

	for i := 0; i < 10; i++ {
		p := filepath.Join(root, "record-"+string(rune('a'+i)))
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	count := 0
	deadline := time.After(time.Second)
collect:
	for {
		select {
		case <-hits:
			count++
		case <-deadline:
			break collect
		}
	}
	if count == 0 {
		t.Fatalf("burst produced no trigger")
	}
	if count >= 10 {
		t.Fatalf("burst of 10 writes produced %d triggers", count)
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	w, err := watch.New(t.TempDir(), -1, -1, -1, func(context.Context) {})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop on cancel")
	}
}

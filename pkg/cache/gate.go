package cache

import (
	"sync"
	"time"

	"extcache/pkg/logger"
)

type loadState int

const (
	loadIdle loadState = iota
	loadRunning
	loadComplete
)

// gate tracks whether a message load cycle has finished. Arming after a
// completed cycle re-opens it, so arm/wait pairs may repeat for the life
// of the process.
type gate struct {
	mu    sync.Mutex
	state loadState
	done  chan struct{}
}

func newGate() *gate {
	return &gate{state: loadIdle, done: make(chan struct{})}
}

// arm resets the gate so waiters block until the next completion.
func (g *gate) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == loadComplete {
		g.done = make(chan struct{})
	}
	g.state = loadRunning
}

// complete releases every current waiter. Calling it again before the
// next arm is a no-op.
func (g *gate) complete() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == loadComplete {
		return
	}
	g.state = loadComplete
	close(g.done)
}

// wait blocks until the gate completes or timeout elapses.
func (g *gate) wait(timeout time.Duration) bool {
	g.mu.Lock()
	ch := g.done
	g.mu.Unlock()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}

// WillLoadMessages re-arms the load gate. Callers that must observe a
// fresh load call this before triggering the load itself, otherwise a
// previously completed cycle satisfies the wait immediately.
func (c *Cache) WillLoadMessages() {
	c.gate.arm()
	logger.Debug("load_gate_armed")
}

// WaitUntilMessagesAreLoaded blocks until the current load cycle finishes
// or timeout elapses, reporting which happened.
func (c *Cache) WaitUntilMessagesAreLoaded(timeout time.Duration) bool {
	return c.gate.wait(timeout)
}

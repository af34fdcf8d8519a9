package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWaitBeforeAnyLoad(t *testing.T) {
	c, _ := newTestCache(t)
	if c.WaitUntilMessagesAreLoaded(50 * time.Millisecond) {
		t.Fatalf("wait returned before any load cycle ran")
	}
}

func TestWaitAfterLoadCompletes(t *testing.T) {
	c, _ := newTestCache(t)
	if err := c.LoadMessages(context.Background()); err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if !c.WaitUntilMessagesAreLoaded(10 * time.Millisecond) {
		t.Fatalf("wait timed out after a completed load")
	}
}

func TestWillLoadMessagesRearms(t *testing.T) {
	c, _ := newTestCache(t)
	if err := c.LoadMessages(context.Background()); err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if !c.WaitUntilMessagesAreLoaded(10 * time.Millisecond) {
		t.Fatalf("wait timed out after first load")
	}

	c.WillLoadMessages()
	if c.WaitUntilMessagesAreLoaded(50 * time.Millisecond) {
		t.Fatalf("wait returned while a new cycle was pending")
	}

	if err := c.LoadMessages(context.Background()); err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if !c.WaitUntilMessagesAreLoaded(10 * time.Millisecond) {
		t.Fatalf("wait timed out after second load")
	}
}

func TestWaitReleasedByConcurrentLoad(t *testing.T) {
	c, _ := newTestCache(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond)
		c.WillLoadMessages()
		if err := c.LoadMessages(context.Background()); err != nil {
			t.Errorf("LoadMessages: %v", err)
		}
	}()

	if !c.WaitUntilMessagesAreLoaded(5 * time.Second) {
		t.Fatalf("wait never released by the load cycle")
	}
	wg.Wait()
}

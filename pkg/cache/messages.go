package cache

import (
	"context"
	"errors"
	"os"
	"path"
	"strings"

	"extcache/pkg/logger"
	"extcache/pkg/models"
	"extcache/pkg/pathhash"
	"extcache/pkg/store"
)

// SaveMessage encrypts and stores msg in its conversation bucket, under
// the namespace the message's kind and read state select. An unread
// message request additionally writes the bucket's message-request stub,
// which collapses the bucket to a single unit in the unread count. Path
// derivation failure is a silent no-op.
func (c *Cache) SaveMessage(msg *models.Message) error {
	if msg == nil {
		return nil
	}
	bucket, ok := c.bucketSegment(msg.ThreadID)
	if !ok {
		return nil
	}
	seg, ok := c.hash.Segment(pathhash.MessageSalt, msg.ServerHash)
	if !ok {
		return nil
	}
	ns := msg.Namespace()
	if err := c.store.WriteValue(path.Join(conversationsDir, bucket, ns, seg), msg); err != nil {
		return err
	}
	if ns == unreadNS && msg.MessageRequest {
		stub, ok := c.stubSegment(bucket)
		if !ok {
			return nil
		}
		if err := c.store.Write(path.Join(conversationsDir, bucket, unreadNS, stub), nil); err != nil {
			return err
		}
	}
	return nil
}

// LoadMessages drains the cache into the ingestor: every cached message
// is decrypted, handed over, and deleted on success. Config records are
// processed before standard ones within each bucket so config state lands
// before the messages that depend on it. Files that fail to read or
// ingest are logged and retained for the next cycle. Completing the cycle
// releases WaitUntilMessagesAreLoaded callers whether or not every file
// succeeded.
func (c *Cache) LoadMessages(ctx context.Context) error {
	defer c.gate.complete()

	buckets, err := c.loadBuckets()
	if err != nil {
		logger.Error("message_load_enumeration_failed", "error", err.Error())
		return err
	}

	var tally loadTally
	for _, bucket := range buckets {
		for _, ns := range []string{configNS, readNS, unreadNS} {
			if err := c.loadNamespace(ctx, bucket, ns, &tally); err != nil {
				return err
			}
		}
	}
	logger.Info("messages_loaded",
		"config_processed", tally.configProcessed,
		"standard_processed", tally.standardProcessed,
		"failed", tally.failed)
	return nil
}

type loadTally struct {
	configProcessed   int
	standardProcessed int
	failed            int
}

// loadBuckets returns the buckets a load must visit: the user's own
// bucket first, then every bucket physically present.
func (c *Cache) loadBuckets() ([]string, error) {
	seen := make(map[string]bool)
	var buckets []string
	if own, ok := c.ownBucket(); ok {
		seen[own] = true
		buckets = append(buckets, own)
	}
	entries, err := c.be.List(conversationsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return buckets, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if !e.Dir || strings.HasPrefix(e.Name, ".") || seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		buckets = append(buckets, e.Name)
	}
	return buckets, nil
}

func (c *Cache) ownBucket() (string, bool) {
	id := c.userID
	if id == "" {
		if meta := c.LoadUserMetadata(); meta != nil {
			id = meta.AccountID
		}
	}
	if id == "" {
		return "", false
	}
	return c.bucketSegment(id)
}

func (c *Cache) loadNamespace(ctx context.Context, bucket, ns string, tally *loadTally) error {
	dir := path.Join(conversationsDir, bucket, ns)
	entries, err := c.be.List(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("message_namespace_list_failed", "namespace", ns, "error", err.Error())
			tally.failed++
		}
		return nil
	}

	stub := ""
	if ns == unreadNS {
		if s, ok := c.stubSegment(bucket); ok {
			stub = s
		}
	}

	failedHere := 0
	for _, e := range entries {
		if e.Dir || strings.HasPrefix(e.Name, ".") {
			continue
		}
		if stub != "" && e.Name == stub {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p := path.Join(dir, e.Name)
		if !c.loadOne(p, ns, tally) {
			failedHere++
		}
	}

	// A stub with no failed real entries left behind it is stale: without
	// it the bucket would report phantom unread units forever.
	if stub != "" && failedHere == 0 {
		if err := c.be.Delete(path.Join(dir, stub)); err != nil {
			logger.Debug("message_request_stub_remove_failed", "error", err.Error())
		}
	}
	if err := c.be.RemoveDirIfEmpty(dir); err != nil {
		logger.Debug("message_namespace_remove_failed", "namespace", ns, "error", err.Error())
	}
	return nil
}

// loadOne reads, ingests, and deletes a single record. It reports whether
// the record is done with, either ingested or gone already.
func (c *Cache) loadOne(p, ns string, tally *loadTally) bool {
	data, state := c.store.Read(p)
	switch state {
	case store.Miss:
		// Consumed by another process between list and read.
		return true
	case store.Corrupt:
		tally.failed++
		return false
	}

	msg, err := c.decode(data)
	if err != nil {
		logger.Warn("message_undecodable", "error", err.Error())
		tally.failed++
		return false
	}
	if c.ingest != nil {
		if err := c.ingest.Ingest(msg); err != nil {
			logger.Warn("message_ingest_failed", "error", err.Error())
			tally.failed++
			return false
		}
	}
	if err := c.be.Delete(p); err != nil {
		logger.Debug("message_record_remove_failed", "error", err.Error())
	}
	if ns == configNS {
		tally.configProcessed++
	} else {
		tally.standardProcessed++
	}
	return true
}

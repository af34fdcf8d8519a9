package cache

import (
	"errors"
	"path"
	"strings"
	"time"

	"extcache/pkg/logger"
	"extcache/pkg/pathhash"
)

var (
	// ErrFailedToStoreDedupeRecord is returned when a dedupe marker cannot
	// be derived or persisted. A missed marker means the same event may be
	// handled twice, so callers are told.
	ErrFailedToStoreDedupeRecord = errors.New("failed to store dedupe record")

	// ErrFailedToUpdateLastClearedRecord is returned when the last-cleared
	// watermark cannot be written.
	ErrFailedToUpdateLastClearedRecord = errors.New("failed to update last cleared record")
)

// RecordExists reports whether uniqueID was already handled for threadID.
// Derivation failure reads as "not handled".
func (c *Cache) RecordExists(threadID, uniqueID string) bool {
	p, ok := c.dedupePath(threadID, uniqueID)
	if !ok {
		return false
	}
	return c.store.Exists(p)
}

// CreateRecord marks uniqueID as handled for threadID. The record carries
// no payload; its presence is the fact.
func (c *Cache) CreateRecord(threadID, uniqueID string) error {
	p, ok := c.dedupePath(threadID, uniqueID)
	if !ok {
		return ErrFailedToStoreDedupeRecord
	}
	return c.store.Write(p, nil)
}

// RemoveRecord deletes the marker for uniqueID and, when the bucket's
// dedupe directory is left empty, removes the directory too. Failures are
// logged only.
func (c *Cache) RemoveRecord(threadID, uniqueID string) {
	bucket, ok := c.bucketSegment(threadID)
	if !ok {
		return
	}
	seg, ok := c.hash.Segment(pathhash.DedupeSalt, uniqueID)
	if !ok {
		return
	}
	dir := path.Join(conversationsDir, bucket, dedupeNS)
	if err := c.be.Delete(path.Join(dir, seg)); err != nil {
		logger.Warn("dedupe_record_remove_failed", "error", err.Error())
		return
	}
	if err := c.be.RemoveDirIfEmpty(dir); err != nil {
		logger.Debug("dedupe_dir_remove_failed", "error", err.Error())
	}
}

// UpsertLastCleared writes the bucket's last-cleared watermark, stamping
// it with the current time. Records whose modification time is at or
// before the watermark no longer count as pending.
func (c *Cache) UpsertLastCleared(threadID string) error {
	bucket, ok := c.bucketSegment(threadID)
	if !ok {
		return ErrFailedToUpdateLastClearedRecord
	}
	return c.store.Write(path.Join(conversationsDir, bucket, dedupeNS, bucket), nil)
}

// HasRecordSinceLastCleared reports whether any dedupe record in the
// thread's bucket is strictly newer than the last-cleared watermark. A
// missing watermark counts as the beginning of time, so any record at all
// answers true.
func (c *Cache) HasRecordSinceLastCleared(threadID string) bool {
	bucket, ok := c.bucketSegment(threadID)
	if !ok {
		return false
	}
	dir := path.Join(conversationsDir, bucket, dedupeNS)
	entries, err := c.be.List(dir)
	if err != nil {
		return false
	}

	var watermark time.Time
	if e, serr := c.be.Stat(path.Join(dir, bucket)); serr == nil {
		watermark = e.ModTime
	}
	for _, e := range entries {
		if e.Dir || e.Name == bucket || strings.HasPrefix(e.Name, ".") {
			continue
		}
		if e.ModTime.After(watermark) {
			return true
		}
	}
	return false
}

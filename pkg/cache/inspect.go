package cache

import (
	"errors"
	"os"
	"path"
	"strings"
)

// BucketSummary counts the records a conversation bucket holds per
// namespace.
type BucketSummary struct {
	Name   string
	Config int
	Read   int
	Unread int
	Dedupe int
	Dumps  int
}

// Summary describes the cache contents without decrypting anything.
type Summary struct {
	Buckets     []BucketSummary
	HasMetadata bool
	HasSettings bool
	Unread      int
}

// Summarize walks the tree and tallies record counts. Decryption is never
// attempted, so a summary works even without the key.
func (c *Cache) Summarize() (Summary, error) {
	var s Summary
	s.HasMetadata = c.store.Exists(metadataPath)
	s.HasSettings = c.store.Exists(settingsPath)

	buckets, err := c.be.List(conversationsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, err
	}
	for _, b := range buckets {
		if !b.Dir || strings.HasPrefix(b.Name, ".") {
			continue
		}
		bs := BucketSummary{Name: b.Name}
		dir := path.Join(conversationsDir, b.Name)
		bs.Config = c.countFiles(path.Join(dir, configNS))
		bs.Read = c.countFiles(path.Join(dir, readNS))
		bs.Unread = c.countFiles(path.Join(dir, unreadNS))
		bs.Dedupe = c.countFiles(path.Join(dir, dedupeNS))
		bs.Dumps = c.countFiles(path.Join(dir, dumpsNS))
		s.Buckets = append(s.Buckets, bs)
	}

	unread, err := c.UnreadMessageCount()
	if err != nil {
		return s, err
	}
	s.Unread = unread
	return s, nil
}

func (c *Cache) countFiles(dir string) int {
	entries, err := c.be.List(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.Dir || strings.HasPrefix(e.Name, ".") {
			continue
		}
		n++
	}
	return n
}

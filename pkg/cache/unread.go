package cache

import (
	"errors"
	"os"
	"path"
	"strings"
)

// UnreadMessageCount derives the app badge count from the unread-file
// population. Each file in a bucket's unread namespace counts one, except
// that a bucket holding the message-request stub contributes at most one
// unit no matter how many files it has. An absent cache is a valid zero;
// the error covers enumeration failures only.
func (c *Cache) UnreadMessageCount() (int, error) {
	buckets, err := c.be.List(conversationsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	total := 0
	for _, b := range buckets {
		if !b.Dir || strings.HasPrefix(b.Name, ".") {
			continue
		}
		entries, err := c.be.List(path.Join(conversationsDir, b.Name, unreadNS))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return 0, err
		}

		stub, stubOK := c.stubSegment(b.Name)
		count, sawStub := 0, false
		for _, e := range entries {
			if e.Dir || strings.HasPrefix(e.Name, ".") {
				continue
			}
			if stubOK && e.Name == stub {
				sawStub = true
				continue
			}
			count++
		}
		if sawStub && count > 1 {
			count = 1
		}
		total += count
	}
	return total, nil
}

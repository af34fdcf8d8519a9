// Package store holds the atomic encrypted record store and its backends.
// Records live at hash-derived paths; the only externally visible mutation
// is an atomic replace, so a concurrent reader in another process sees
// either the previous record or the new one, never a partial write.
package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"extcache/pkg/crypt"
	"extcache/pkg/keychain"
	"extcache/pkg/logger"
)

// ErrFailedToWriteToFile is returned when the final replace of a record
// fails. The underlying error is wrapped alongside it.
var ErrFailedToWriteToFile = errors.New("failed to write to file")

// Entry describes one stored record or directory.
type Entry struct {
	Name    string
	Dir     bool
	Size    int64
	ModTime time.Time
}

// Backend is the key-value surface the cache needs from its backing
// medium. Keys are slash-separated paths relative to the cache root.
type Backend interface {
	// Put atomically replaces the record at path with data, creating and
	// protecting parent directories as needed.
	Put(path string, data []byte) error
	// Get returns the record bytes; absence satisfies errors.Is(err, os.ErrNotExist).
	Get(path string) ([]byte, error)
	// Delete removes the record. Deleting an absent record is not an error.
	Delete(path string) error
	// Stat describes the entry at path.
	Stat(path string) (Entry, error)
	// Touch sets the record's modification time without rewriting content.
	Touch(path string, mtime time.Time) error
	// List enumerates the immediate children of dir in name order.
	List(dir string) ([]Entry, error)
	// RemoveDirIfEmpty removes dir when it holds no entries.
	RemoveDirIfEmpty(dir string) error
	// RemoveAll removes path and everything below it.
	RemoveAll(path string) error
	// Protect applies data protection to an existing path. Idempotent.
	Protect(path string) error
	Close() error
}

// LookupState classifies the outcome of a read. All three outcomes are
// non-fatal to callers; the split exists for diagnostics and metrics.
type LookupState int

const (
	Hit LookupState = iota
	Miss
	Corrupt
)

func (s LookupState) String() string {
	switch s {
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case Corrupt:
		return "corrupt"
	}
	return "unknown"
}

// Encode serializes a value to msgpack bytes.
func Encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode deserializes msgpack bytes into v.
func Decode(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

// Store encrypts records on the way into a Backend and decrypts on the
// way out. A Store is safe for concurrent use.
type Store struct {
	be   Backend
	keys keychain.Provider
}

func New(be Backend, keys keychain.Provider) *Store {
	return &Store{be: be, keys: keys}
}

// Backend exposes the underlying backend for enumeration and cleanup.
func (s *Store) Backend() Backend { return s.be }

// Write encrypts plaintext and atomically replaces the record at path.
// A missing key fails with keychain.ErrNoEncryptionKey; a failed replace
// wraps ErrFailedToWriteToFile together with the underlying error.
func (s *Store) Write(path string, plaintext []byte) error {
	key, err := s.keys.EncryptionKey()
	if err != nil {
		recordWrites.WithLabelValues("no_key").Inc()
		return keychain.ErrNoEncryptionKey
	}
	defer crypt.Zero(key)
	blob, err := crypt.Encrypt(key, plaintext)
	if err != nil {
		recordWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("encrypt record: %w", err)
	}
	if err := s.be.Put(path, blob); err != nil {
		recordWrites.WithLabelValues("error").Inc()
		logger.Error("record_write_failed", "path", path, "error", err.Error())
		return fmt.Errorf("%w: %w", ErrFailedToWriteToFile, err)
	}
	recordWrites.WithLabelValues("ok").Inc()
	return nil
}

// WriteValue msgpack-encodes v and writes it encrypted at path.
func (s *Store) WriteValue(path string, v interface{}) error {
	b, err := Encode(v)
	if err != nil {
		recordWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("encode record: %w", err)
	}
	return s.Write(path, b)
}

// Read decrypts the record at path. Absent records are a Miss; unreadable
// or undecryptable records are Corrupt. Neither is an error: the cache is
// advisory and the authoritative copy can always be re-fetched.
func (s *Store) Read(path string) ([]byte, LookupState) {
	blob, err := s.be.Get(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			recordReads.WithLabelValues("miss").Inc()
			return nil, Miss
		}
		recordReads.WithLabelValues("corrupt").Inc()
		logger.Warn("record_read_failed", "path", path, "error", err.Error())
		return nil, Corrupt
	}
	key, err := s.keys.EncryptionKey()
	if err != nil {
		recordReads.WithLabelValues("miss").Inc()
		logger.Warn("record_read_no_key", "path", path)
		return nil, Miss
	}
	defer crypt.Zero(key)
	pt, err := crypt.Decrypt(key, blob)
	if err != nil {
		recordReads.WithLabelValues("corrupt").Inc()
		logger.Warn("record_undecryptable", "path", path)
		return nil, Corrupt
	}
	recordReads.WithLabelValues("hit").Inc()
	return pt, Hit
}

// ReadValue reads and decodes the record at path into v. A record that
// decrypts but does not decode is Corrupt.
func (s *Store) ReadValue(path string, v interface{}) LookupState {
	pt, state := s.Read(path)
	if state != Hit {
		return state
	}
	if err := Decode(pt, v); err != nil {
		recordReads.WithLabelValues("corrupt").Inc()
		logger.Warn("record_undecodable", "path", path)
		return Corrupt
	}
	return Hit
}

// Exists reports whether a record is present at path. Stat failures other
// than absence also report false.
func (s *Store) Exists(path string) bool {
	e, err := s.be.Stat(path)
	return err == nil && !e.Dir
}

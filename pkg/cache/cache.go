// Package cache implements the encrypted replication cache shared between
// the main app process and its sandboxed extension processes. The producer
// drops encrypted records into hash-derived paths; the consumer enumerates
// and ingests them. No locks: atomic replace plus deterministic path
// derivation make writes from either side commutative.
package cache

import (
	"path"
	"time"

	"extcache/pkg/keychain"
	"extcache/pkg/logger"
	"extcache/pkg/models"
	"extcache/pkg/pathhash"
	"extcache/pkg/store"
)

const (
	conversationsDir = "conversations"

	configNS = "config"
	readNS   = "read"
	unreadNS = "unread"
	dedupeNS = "dedupe"
	dumpsNS  = "dumps"

	metadataPath = "metadata"
	settingsPath = "notificationSettings"
)

// Ingestor receives decrypted domain messages from the load pipeline. It
// is the seam to the host's database layer.
type Ingestor interface {
	Ingest(msg *models.Message) error
}

// IngestorFunc adapts a function to the Ingestor interface.
type IngestorFunc func(msg *models.Message) error

func (f IngestorFunc) Ingest(msg *models.Message) error { return f(msg) }

// DumpSource exposes the config library's source-of-truth dumps. A nil
// dump with a nil error means the library holds no state for the pair.
type DumpSource interface {
	Dump(identity string, variant models.Variant) (*models.ConfigDump, error)
}

// StateLoader pushes replica dumps back into the config library's
// in-memory state.
type StateLoader interface {
	LoadState(dump *models.ConfigDump) error
}

// Decoder turns decrypted record bytes into a domain message.
type Decoder func(data []byte) (*models.Message, error)

// Cache is the front door to the record store. All operations are safe for
// concurrent use within a process; cross-process safety comes from the
// store's atomic replace discipline.
type Cache struct {
	store  *store.Store
	be     store.Backend
	hash   pathhash.Deriver
	clock  func() time.Time
	ingest Ingestor
	source DumpSource
	loader StateLoader
	decode Decoder
	userID string
	gate   *gate
}

// Option configures optional collaborators on a Cache.
type Option func(*Cache)

// WithHash replaces the path derivation hash.
func WithHash(fn pathhash.Func) Option {
	return func(c *Cache) { c.hash = pathhash.New(fn) }
}

// WithClock replaces the time source.
func WithClock(fn func() time.Time) Option {
	return func(c *Cache) { c.clock = fn }
}

// WithIngestor sets the message ingestion collaborator.
func WithIngestor(i Ingestor) Option {
	return func(c *Cache) { c.ingest = i }
}

// WithDumpSource sets the config-library dump source.
func WithDumpSource(s DumpSource) Option {
	return func(c *Cache) { c.source = s }
}

// WithStateLoader sets the config-library state sink.
func WithStateLoader(l StateLoader) Option {
	return func(c *Cache) { c.loader = l }
}

// WithDecoder replaces the message decoder.
func WithDecoder(d Decoder) Option {
	return func(c *Cache) { c.decode = d }
}

// WithUserIdentity sets the account identity whose bucket is always
// included in a load. Falls back to the cached user metadata when unset.
func WithUserIdentity(id string) Option {
	return func(c *Cache) { c.userID = id }
}

func New(be store.Backend, keys keychain.Provider, opts ...Option) *Cache {
	c := &Cache{
		store: store.New(be, keys),
		be:    be,
		hash:  pathhash.New(nil),
		clock: time.Now,
		gate:  newGate(),
	}
	c.decode = func(data []byte) (*models.Message, error) {
		var m models.Message
		if err := store.Decode(data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Store exposes the underlying encrypted store.
func (c *Cache) Store() *store.Store { return c.store }

// DeleteCache wipes the cache wholesale. The tree is recreated lazily on
// the next write.
func (c *Cache) DeleteCache() error {
	if err := c.be.RemoveAll(""); err != nil {
		logger.Error("cache_delete_failed", "error", err.Error())
		return err
	}
	logger.Info("cache_deleted")
	return nil
}

// bucketSegment derives the conversation bucket name for threadID.
func (c *Cache) bucketSegment(threadID string) (string, bool) {
	return c.hash.Segment(pathhash.ConvoSalt, threadID)
}

// stubSegment derives the message-request stub name from the bucket's own
// segment.
func (c *Cache) stubSegment(bucket string) (string, bool) {
	return c.hash.Segment(bucket, pathhash.MessageRequestMarker)
}

func (c *Cache) dedupePath(threadID, uniqueID string) (string, bool) {
	bucket, ok := c.bucketSegment(threadID)
	if !ok {
		return "", false
	}
	seg, ok := c.hash.Segment(pathhash.DedupeSalt, uniqueID)
	if !ok {
		return "", false
	}
	return path.Join(conversationsDir, bucket, dedupeNS, seg), true
}

func (c *Cache) dumpPath(identity string, variant models.Variant) (string, bool) {
	bucket, ok := c.bucketSegment(identity)
	if !ok {
		return "", false
	}
	seg, ok := c.hash.Segment(pathhash.DumpSalt, string(variant))
	if !ok {
		return "", false
	}
	return path.Join(conversationsDir, bucket, dumpsNS, seg), true
}

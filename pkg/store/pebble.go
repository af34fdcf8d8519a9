package store

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"extcache/pkg/logger"
)

// Pebble keeps records in an embedded KV engine instead of a shared
// directory. Useful for single-process deployments and offline tooling;
// cross-process handoff still needs the FS backend. Directories are
// implicit: they exist exactly while keys live under them.
type Pebble struct {
	db   *pebble.DB
	path string
}

// envelope carries record bytes plus the modification time a filesystem
// would otherwise track, so freshness and watermark comparisons behave
// identically across backends.
type envelope struct {
	Data    []byte `msgpack:"d"`
	ModTime int64  `msgpack:"mt"`
}

// OpenPebble opens (or creates) a Pebble database at the given path.
func OpenPebble(dbPath string) (*Pebble, error) {
	logger.Info("opening_pebble_db", "path", dbPath)
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", dbPath, "error", err.Error())
		return nil, err
	}
	logger.Info("pebble_opened", "path", dbPath)
	return &Pebble{db: db, path: dbPath}, nil
}

func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return err
	}
	p.db = nil
	logger.Info("pebble_closed")
	return nil
}

func (p *Pebble) Put(key string, data []byte) error {
	env := envelope{Data: data, ModTime: time.Now().UnixNano()}
	b, err := Encode(&env)
	if err != nil {
		return err
	}
	return p.db.Set([]byte(key), b, pebble.Sync)
}

func (p *Pebble) Get(key string) ([]byte, error) {
	v, closer, err := p.db.Get([]byte(key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, fmt.Errorf("%s: %w", key, os.ErrNotExist)
		}
		return nil, err
	}
	buf := append([]byte(nil), v...)
	if closer != nil {
		closer.Close()
	}
	var env envelope
	if err := Decode(buf, &env); err != nil {
		return nil, fmt.Errorf("corrupt envelope at %s: %w", key, err)
	}
	return env.Data, nil
}

func (p *Pebble) Delete(key string) error {
	return p.db.Delete([]byte(key), pebble.Sync)
}

func (p *Pebble) Stat(key string) (Entry, error) {
	v, closer, err := p.db.Get([]byte(key))
	if err == nil {
		buf := append([]byte(nil), v...)
		if closer != nil {
			closer.Close()
		}
		var env envelope
		if derr := Decode(buf, &env); derr != nil {
			return Entry{}, derr
		}
		return Entry{Name: path.Base(key), Size: int64(len(env.Data)), ModTime: time.Unix(0, env.ModTime)}, nil
	}
	if err != pebble.ErrNotFound {
		return Entry{}, err
	}
	if p.hasPrefix(strings.TrimSuffix(key, "/") + "/") {
		return Entry{Name: path.Base(key), Dir: true}, nil
	}
	return Entry{}, fmt.Errorf("%s: %w", key, os.ErrNotExist)
}

func (p *Pebble) Touch(key string, mtime time.Time) error {
	v, closer, err := p.db.Get([]byte(key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return fmt.Errorf("%s: %w", key, os.ErrNotExist)
		}
		return err
	}
	buf := append([]byte(nil), v...)
	if closer != nil {
		closer.Close()
	}
	var env envelope
	if err := Decode(buf, &env); err != nil {
		return err
	}
	env.ModTime = mtime.UnixNano()
	b, err := Encode(&env)
	if err != nil {
		return err
	}
	return p.db.Set([]byte(key), b, pebble.Sync)
}

// List synthesizes the immediate children of dir from a prefix scan.
// Implicit directories come back with Dir set and zero size/mtime.
func (p *Pebble) List(dir string) ([]Entry, error) {
	prefix := ""
	if dir != "" && dir != "." {
		prefix = strings.TrimSuffix(dir, "/") + "/"
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	pfx := []byte(prefix)
	var out []Entry
	last := ""
	found := false
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		found = true
		rest := string(iter.Key()[len(pfx):])
		seg := rest
		deeper := false
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seg = rest[:i]
			deeper = true
		}
		if seg == last {
			continue
		}
		last = seg
		if deeper {
			out = append(out, Entry{Name: seg, Dir: true})
			continue
		}
		var env envelope
		if derr := Decode(append([]byte(nil), iter.Value()...), &env); derr != nil {
			out = append(out, Entry{Name: seg})
			continue
		}
		out = append(out, Entry{Name: seg, Size: int64(len(env.Data)), ModTime: time.Unix(0, env.ModTime)})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if !found && prefix != "" {
		return nil, fmt.Errorf("%s: %w", dir, os.ErrNotExist)
	}
	return out, nil
}

// RemoveDirIfEmpty is a no-op: implicit directories vanish with their last
// record.
func (p *Pebble) RemoveDirIfEmpty(dir string) error { return nil }

func (p *Pebble) RemoveAll(key string) error {
	if key != "" {
		if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
			return err
		}
	}
	prefix := ""
	if key != "" {
		prefix = strings.TrimSuffix(key, "/") + "/"
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	pfx := []byte(prefix)
	batch := p.db.NewBatch()
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		k := append([]byte(nil), iter.Key()...)
		if err := batch.Delete(k, nil); err != nil {
			_ = batch.Close()
			return err
		}
	}
	if err := iter.Error(); err != nil {
		_ = batch.Close()
		return err
	}
	return p.db.Apply(batch, pebble.Sync)
}

// Protect is a no-op: records are encrypted and the engine owns its files.
func (p *Pebble) Protect(key string) error { return nil }

func (p *Pebble) hasPrefix(prefix string) bool {
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return false
	}
	defer iter.Close()
	pfx := []byte(prefix)
	iter.SeekGE(pfx)
	return iter.Valid() && bytes.HasPrefix(iter.Key(), pfx)
}

package keychain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"extcache/pkg/crypt"
	"extcache/pkg/logger"
)

// ErrNoEncryptionKey is returned when no usable cache key can be resolved.
// Writes must not proceed without a key.
var ErrNoEncryptionKey = errors.New("no encryption key available")

// Provider supplies the symmetric cache key shared by the app process and
// its extension processes.
type Provider interface {
	// EncryptionKey returns a copy of the raw key. Callers must not retain
	// the slice beyond the operation at hand.
	EncryptionKey() ([]byte, error)
	// Close zeroizes any resident key material.
	Close() error
}

// FileProvider stores a hex-encoded key in a private file, generating it on
// first use. Both processes point at the same file, so the first one to run
// provisions the key for everyone.
type FileProvider struct {
	path string

	mu     sync.Mutex
	key    []byte
	locked bool
}

// NewFileProvider returns a provider backed by the key file at path. The
// file is not touched until the first EncryptionKey call.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// EncryptionKey loads the key file, generating and persisting a fresh key
// when none exists yet. Concurrent first-use across processes is resolved
// by exclusive create: the loser discards its candidate and reads the
// winner's key.
func (p *FileProvider) EncryptionKey() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key != nil {
		return append([]byte(nil), p.key...), nil
	}
	k, err := p.load()
	if err == nil {
		p.retain(k)
		return append([]byte(nil), p.key...), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("keychain_key_unusable", "path", p.path, "error", err.Error())
		return nil, ErrNoEncryptionKey
	}

	fresh, err := crypt.NewKey()
	if err != nil {
		return nil, ErrNoEncryptionKey
	}
	if err := p.create(fresh); err != nil {
		crypt.Zero(fresh)
		if !errors.Is(err, os.ErrExist) {
			logger.Warn("keychain_key_create_failed", "path", p.path, "error", err.Error())
			return nil, ErrNoEncryptionKey
		}
		// another process provisioned the key first
		k, lerr := p.load()
		if lerr != nil {
			return nil, ErrNoEncryptionKey
		}
		p.retain(k)
		return append([]byte(nil), p.key...), nil
	}
	logger.Info("keychain_key_provisioned", "path", p.path)
	p.retain(fresh)
	return append([]byte(nil), p.key...), nil
}

// Close zeroizes and releases the resident key.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key != nil {
		if p.locked {
			_ = crypt.UnlockMemory(p.key)
			p.locked = false
		}
		crypt.Zero(p.key)
		p.key = nil
	}
	return nil
}

func (p *FileProvider) retain(k []byte) {
	p.key = k
	if err := crypt.LockMemory(p.key); err == nil {
		p.locked = true
	}
}

func (p *FileProvider) load() ([]byte, error) {
	b, err := os.ReadFile(p.path)
	if err != nil {
		return nil, err
	}
	k, err := hex.DecodeString(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, fmt.Errorf("key file is not hex: %w", err)
	}
	if len(k) != crypt.KeySize {
		return nil, fmt.Errorf("key file holds %d bytes, want %d", len(k), crypt.KeySize)
	}
	return k, nil
}

func (p *FileProvider) create(k []byte) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(hex.EncodeToString(k))
	cerr := f.Close()
	if werr != nil {
		_ = os.Remove(p.path)
		return werr
	}
	if cerr != nil {
		_ = os.Remove(p.path)
		return cerr
	}
	return nil
}

// Static returns a provider that always serves the given key. Used by
// tests and by hosts that resolve the key through their own keychain.
func Static(key []byte) Provider {
	return staticProvider{key: append([]byte(nil), key...)}
}

type staticProvider struct{ key []byte }

func (s staticProvider) EncryptionKey() ([]byte, error) {
	if len(s.key) != crypt.KeySize {
		return nil, ErrNoEncryptionKey
	}
	return append([]byte(nil), s.key...), nil
}

func (s staticProvider) Close() error { return nil }

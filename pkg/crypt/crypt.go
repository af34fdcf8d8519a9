package crypt

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required symmetric key length in bytes.
const KeySize = chacha20poly1305.KeySize

var (
	// ErrInvalidKey is returned when the provided key is not KeySize bytes.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")
	// ErrCiphertextShort is returned when a blob is too small to hold a nonce.
	ErrCiphertextShort = errors.New("ciphertext too short")
)

// Encrypt seals plaintext with the provided raw key using
// XChaCha20-Poly1305 and returns nonce|ciphertext (nonce prepended).
func Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out := aead.Seal(nil, nonce, plaintext, nil)
	// Prepend nonce for storage
	return append(nonce, out...), nil
}

// Decrypt opens a nonce|ciphertext blob produced by Encrypt.
func Decrypt(key, data []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	ns := aead.NonceSize()
	if len(data) < ns {
		return nil, ErrCiphertextShort
	}
	nonce := data[:ns]
	ct := data[ns:]
	return aead.Open(nil, nonce, ct, nil)
}

// NewKey generates a fresh random key.
func NewKey() ([]byte, error) {
	k := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return nil, err
	}
	return k, nil
}

// Zero overwrites the provided byte slice.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

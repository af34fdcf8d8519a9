package crypt_test

import (
	"bytes"
	"testing"

	"extcache/pkg/crypt"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := crypt.NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	plain := []byte("decrypted message payload")
	blob, err := crypt.Encrypt(key, plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(blob, plain) {
		t.Fatalf("ciphertext contains plaintext")
	}
	got, err := crypt.Decrypt(key, blob)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("roundtrip mismatch: %q vs %q", got, plain)
	}
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	key, err := crypt.NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	blob, err := crypt.Encrypt(key, nil)
	if err != nil {
		t.Fatalf("Encrypt empty: %v", err)
	}
	got, err := crypt.Decrypt(key, blob)
	if err != nil {
		t.Fatalf("Decrypt empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty plaintext, got %d bytes", len(got))
	}
}

func TestEncryptRejectsBadKeySize(t *testing.T) {
	if _, err := crypt.Encrypt(make([]byte, 16), []byte("x")); err == nil {
		t.Fatalf("expected error for short key")
	}
	if _, err := crypt.Decrypt(make([]byte, 16), make([]byte, 64)); err == nil {
		t.Fatalf("expected error for short key on decrypt")
	}
}

func TestDecryptRejectsTamperedBlob(t *testing.T) {
	key, err := crypt.NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	blob, err := crypt.Encrypt(key, []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	blob[len(blob)-1] ^= 0xff
	if _, err := crypt.Decrypt(key, blob); err == nil {
		t.Fatalf("expected authentication failure on tampered blob")
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	k1, _ := crypt.NewKey()
	k2, _ := crypt.NewKey()
	blob, err := crypt.Encrypt(k1, []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := crypt.Decrypt(k2, blob); err == nil {
		t.Fatalf("expected failure with wrong key")
	}
}

func TestDecryptRejectsShortBlob(t *testing.T) {
	key, _ := crypt.NewKey()
	if _, err := crypt.Decrypt(key, []byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for blob shorter than nonce")
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	crypt.Zero(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}
}

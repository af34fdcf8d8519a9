package cache_test

import (
	"bytes"
	"context"
	"testing"

	"extcache/pkg/cache"
	"extcache/pkg/models"
)

func TestUserMetadataRoundtrip(t *testing.T) {
	c, _ := newTestCache(t)

	if got := c.LoadUserMetadata(); got != nil {
		t.Fatalf("fresh cache returned metadata: %+v", got)
	}

	meta := &models.UserMetadata{
		AccountID:   "05aa11",
		SecretKey:   []byte{9, 8, 7},
		UnreadCount: 3,
	}
	if err := c.SaveUserMetadata(meta); err != nil {
		t.Fatalf("SaveUserMetadata: %v", err)
	}

	got := c.LoadUserMetadata()
	if got == nil {
		t.Fatalf("saved metadata not found")
	}
	if got.AccountID != meta.AccountID || got.UnreadCount != meta.UnreadCount {
		t.Fatalf("got %+v, want %+v", got, meta)
	}
	if !bytes.Equal(got.SecretKey, meta.SecretKey) {
		t.Fatalf("secret key mangled: %v", got.SecretKey)
	}
}

func TestUserMetadataOverwrite(t *testing.T) {
	c, _ := newTestCache(t)

	if err := c.SaveUserMetadata(&models.UserMetadata{AccountID: "05old", UnreadCount: 1}); err != nil {
		t.Fatalf("SaveUserMetadata: %v", err)
	}
	if err := c.SaveUserMetadata(&models.UserMetadata{AccountID: "05new"}); err != nil {
		t.Fatalf("SaveUserMetadata: %v", err)
	}

	got := c.LoadUserMetadata()
	if got == nil || got.AccountID != "05new" || got.UnreadCount != 0 {
		t.Fatalf("overwrite kept stale fields: %+v", got)
	}
}

func TestUserMetadataNilSave(t *testing.T) {
	c, _ := newTestCache(t)
	if err := c.SaveUserMetadata(nil); err != nil {
		t.Fatalf("nil metadata save: %v", err)
	}
	if got := c.LoadUserMetadata(); got != nil {
		t.Fatalf("nil save materialized metadata: %+v", got)
	}
}

// Without an explicit identity the load order falls back to the account
// id recorded in the metadata file.
func TestMetadataFeedsOwnBucket(t *testing.T) {
	ing := &captureIngestor{}
	c, _ := newTestCache(t, cache.WithIngestor(ing))

	if err := c.SaveUserMetadata(&models.UserMetadata{AccountID: "05me"}); err != nil {
		t.Fatalf("SaveUserMetadata: %v", err)
	}
	if err := c.SaveMessage(&models.Message{ServerHash: "other", ThreadID: "05them", Kind: models.KindConfig}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if err := c.SaveMessage(&models.Message{ServerHash: "mine", ThreadID: "05me"}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	if err := c.LoadMessages(context.Background()); err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(ing.got) != 2 || ing.got[0].ServerHash != "mine" {
		t.Fatalf("metadata account bucket not drained first: %+v", ing.got)
	}
}

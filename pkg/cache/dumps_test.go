package cache_test

import (
	"bytes"
	"path"
	"testing"
	"time"

	"extcache/pkg/cache"
	"extcache/pkg/models"
)

type fakeSource struct {
	dumps map[string]*models.ConfigDump
	calls []string
}

func pairKey(id string, v models.Variant) string { return id + "|" + string(v) }

func (f *fakeSource) Dump(id string, v models.Variant) (*models.ConfigDump, error) {
	f.calls = append(f.calls, pairKey(id, v))
	return f.dumps[pairKey(id, v)], nil
}

type captureLoader struct {
	got []*models.ConfigDump
	err error
}

func (l *captureLoader) LoadState(d *models.ConfigDump) error {
	if l.err != nil {
		return l.err
	}
	l.got = append(l.got, d)
	return nil
}

func TestReplicateAndLastUpdatedTimestamp(t *testing.T) {
	c, _ := newTestCache(t)

	if ts := c.LastUpdatedTimestamp("05user", models.VariantUserProfile); ts != 0 {
		t.Fatalf("absent replica timestamp = %d, want 0", ts)
	}

	c.Replicate(&models.ConfigDump{
		Identity:    "05user",
		Variant:     models.VariantUserProfile,
		Data:        []byte("profile state"),
		TimestampMs: 1000,
	}, true)

	if ts := c.LastUpdatedTimestamp("05user", models.VariantUserProfile); ts == 0 {
		t.Fatalf("replica timestamp still 0 after replication")
	}
}

func TestLastUpdatedTimestampHashFailure(t *testing.T) {
	c, _ := newTestCache(t, cache.WithHash(func([]byte) []byte { return nil }))
	if ts := c.LastUpdatedTimestamp("05user", models.VariantUserProfile); ts != 0 {
		t.Fatalf("unhashable pair timestamp = %d, want 0", ts)
	}
}

func TestReplicateRespectsReplaceExisting(t *testing.T) {
	loader := &captureLoader{}
	c, _ := newTestCache(t, cache.WithStateLoader(loader))

	c.Replicate(&models.ConfigDump{Identity: "05user", Variant: models.VariantUserProfile, Data: []byte("v1")}, true)
	c.Replicate(&models.ConfigDump{Identity: "05user", Variant: models.VariantUserProfile, Data: []byte("v2")}, false)

	res := c.LoadUserConfigState("05user")
	if !res[models.VariantUserProfile] {
		t.Fatalf("replica failed to load: %v", res)
	}
	if len(loader.got) != 1 || !bytes.Equal(loader.got[0].Data, []byte("v1")) {
		t.Fatalf("non-replacing write clobbered the replica: %+v", loader.got)
	}

	c.Replicate(&models.ConfigDump{Identity: "05user", Variant: models.VariantUserProfile, Data: []byte("v2")}, true)
	loader.got = nil
	_ = c.LoadUserConfigState("05user")
	if len(loader.got) != 1 || !bytes.Equal(loader.got[0].Data, []byte("v2")) {
		t.Fatalf("replacing write did not land: %+v", loader.got)
	}
}

// TestReplicateAllFreshness pins the arbitration rule: the replica is only
// rewritten when the source dump is strictly newer than the replica file.
func TestReplicateAllFreshness(t *testing.T) {
	src := &fakeSource{dumps: map[string]*models.ConfigDump{}}
	c, be := newTestCache(t, cache.WithDumpSource(src))

	dump := &models.ConfigDump{
		Identity:    "05user",
		Variant:     models.VariantUserProfile,
		Data:        []byte("state"),
		TimestampMs: 1234567890,
	}
	src.dumps[pairKey("05user", models.VariantUserProfile)] = dump

	// no replica yet: ReplicateAll writes one
	c.ReplicateAll("05user", nil)
	if ts := c.LastUpdatedTimestamp("05user", models.VariantUserProfile); ts == 0 {
		t.Fatalf("replica not created on first pass")
	}

	// pin the replica just ahead of the source
	bucket := onlyBucket(t, be)
	files := listFiles(t, be, path.Join("conversations", bucket, "dumps"))
	if len(files) != 1 {
		t.Fatalf("expected 1 replica file, got %v", files)
	}
	replicaPath := path.Join("conversations", bucket, "dumps", files[0])
	if err := be.Touch(replicaPath, time.UnixMilli(1234567891)); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	// source at 1234567890 vs replica at 1234567891: no rewrite
	c.ReplicateAll("05user", nil)
	if ts := c.LastUpdatedTimestamp("05user", models.VariantUserProfile); ts != 1234567891 {
		t.Fatalf("stale source overwrote fresher replica, mtime = %d", ts)
	}

	// source moves ahead: rewrite
	dump.TimestampMs = 1234567892
	c.ReplicateAll("05user", nil)
	if ts := c.LastUpdatedTimestamp("05user", models.VariantUserProfile); ts == 1234567891 {
		t.Fatalf("newer source did not rewrite the replica")
	}
}

func TestReplicateAllScopesVariantsByIdentity(t *testing.T) {
	src := &fakeSource{dumps: map[string]*models.ConfigDump{}}
	c, _ := newTestCache(t, cache.WithDumpSource(src))

	c.ReplicateAll("05user", []string{"03group", "05contact"})

	want := map[string]bool{}
	for _, v := range models.UserVariants() {
		want[pairKey("05user", v)] = true
	}
	for _, v := range models.GroupVariants() {
		want[pairKey("03group", v)] = true
	}
	if len(src.calls) != len(want) {
		t.Fatalf("expected %d source queries, got %d: %v", len(want), len(src.calls), src.calls)
	}
	for _, call := range src.calls {
		if !want[call] {
			t.Fatalf("unexpected source query %s", call)
		}
	}
}

func TestReplicateAllWithoutSource(t *testing.T) {
	c, _ := newTestCache(t)
	// no dump source wired: must be a quiet no-op
	c.ReplicateAll("05user", []string{"03group"})
}

func TestRefreshModifiedDate(t *testing.T) {
	now := time.Unix(2000000000, 0)
	c, be := newTestCache(t, cache.WithClock(func() time.Time { return now }))

	c.Replicate(&models.ConfigDump{Identity: "05user", Variant: models.VariantContacts, Data: []byte("x")}, true)
	bucket := onlyBucket(t, be)
	files := listFiles(t, be, path.Join("conversations", bucket, "dumps"))
	if len(files) != 1 {
		t.Fatalf("expected 1 replica, got %v", files)
	}
	if err := be.Touch(path.Join("conversations", bucket, "dumps", files[0]), time.Unix(1000, 0)); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	c.RefreshModifiedDate("05user", models.VariantContacts)
	if ts := c.LastUpdatedTimestamp("05user", models.VariantContacts); ts != now.UnixMilli() {
		t.Fatalf("refresh set mtime %d, want %d", ts, now.UnixMilli())
	}
}

func TestLoadUserConfigStateResults(t *testing.T) {
	loader := &captureLoader{}
	c, be := newTestCache(t, cache.WithStateLoader(loader))

	c.Replicate(&models.ConfigDump{Identity: "05user", Variant: models.VariantUserProfile, Data: []byte("p")}, true)
	c.Replicate(&models.ConfigDump{Identity: "05user", Variant: models.VariantContacts, Data: []byte("c")}, true)

	bucket := onlyBucket(t, be)
	files := listFiles(t, be, path.Join("conversations", bucket, "dumps"))
	if len(files) != 2 {
		t.Fatalf("expected 2 replicas, got %v", files)
	}

	res := c.LoadUserConfigState("05user")
	if !res[models.VariantUserProfile] || !res[models.VariantContacts] {
		t.Fatalf("loaded variants not reported: %v", res)
	}
	if res[models.VariantUserGroups] || res[models.VariantConvoInfoVolatile] {
		t.Fatalf("absent variants reported as loaded: %v", res)
	}
	if len(loader.got) != 2 {
		t.Fatalf("loader received %d dumps, want 2", len(loader.got))
	}
}

func TestLoadUserConfigStateCorruptReplica(t *testing.T) {
	loader := &captureLoader{}
	c, be := newTestCache(t, cache.WithStateLoader(loader))

	c.Replicate(&models.ConfigDump{Identity: "05user", Variant: models.VariantUserProfile, Data: []byte("p")}, true)
	bucket := onlyBucket(t, be)
	files := listFiles(t, be, path.Join("conversations", bucket, "dumps"))
	if len(files) != 1 {
		t.Fatalf("expected 1 replica, got %v", files)
	}
	// scribble over the replica so it no longer decrypts
	if err := be.Put(path.Join("conversations", bucket, "dumps", files[0]), []byte("garbage")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	res := c.LoadUserConfigState("05user")
	if res[models.VariantUserProfile] {
		t.Fatalf("corrupt replica reported as loaded")
	}
	if len(loader.got) != 0 {
		t.Fatalf("loader received corrupt dump")
	}
}

func TestLoadGroupConfigStateIfNeeded(t *testing.T) {
	loader := &captureLoader{}
	c, _ := newTestCache(t, cache.WithStateLoader(loader))

	if res := c.LoadGroupConfigStateIfNeeded("05user"); len(res) != 0 {
		t.Fatalf("non-group identity loaded variants: %v", res)
	}

	c.Replicate(&models.ConfigDump{Identity: "03group", Variant: models.VariantGroupInfo, Data: []byte("g")}, true)
	res := c.LoadGroupConfigStateIfNeeded("03group")
	if !res[models.VariantGroupInfo] {
		t.Fatalf("group replica not loaded: %v", res)
	}
	if res[models.VariantGroupMembers] || res[models.VariantGroupKeys] {
		t.Fatalf("absent group variants reported loaded: %v", res)
	}
}

package cache

import (
	"extcache/pkg/logger"
	"extcache/pkg/models"
	"extcache/pkg/store"
)

// LastUpdatedTimestamp returns the modification time of the replica for
// (identity, variant) in unix milliseconds, or 0 when no replica exists
// or the path cannot be derived.
func (c *Cache) LastUpdatedTimestamp(identity string, variant models.Variant) int64 {
	p, ok := c.dumpPath(identity, variant)
	if !ok {
		return 0
	}
	e, err := c.be.Stat(p)
	if err != nil {
		return 0
	}
	return e.ModTime.UnixMilli()
}

// Replicate encrypts and writes dump as the replica for its (identity,
// variant) pair. With replaceExisting false an existing replica is left
// alone. Best-effort: failures are logged, never returned, so replication
// cannot block the caller's own database write.
func (c *Cache) Replicate(dump *models.ConfigDump, replaceExisting bool) {
	if dump == nil {
		return
	}
	p, ok := c.dumpPath(dump.Identity, dump.Variant)
	if !ok {
		return
	}
	if !replaceExisting && c.store.Exists(p) {
		return
	}
	if err := c.store.WriteValue(p, dump); err != nil {
		logger.Error("dump_replicate_failed",
			"variant", string(dump.Variant),
			"error", err.Error())
		return
	}
	logger.Debug("dump_replicated", "variant", string(dump.Variant))
}

// ReplicateAll walks every expected (identity, variant) pair and refreshes
// the replicas that are stale. User-scoped variants are expected for the
// user identity; group-scoped variants for each group identity in
// identities. A replica is rewritten only when the source dump is newer
// than the replica's timestamp, or no replica exists yet.
func (c *Cache) ReplicateAll(userIdentity string, identities []string) {
	if c.source == nil {
		return
	}
	c.replicateExpected(userIdentity, models.UserVariants())
	for _, id := range identities {
		if !models.IsGroup(id) {
			continue
		}
		c.replicateExpected(id, models.GroupVariants())
	}
}

func (c *Cache) replicateExpected(identity string, variants []models.Variant) {
	for _, v := range variants {
		dump, err := c.source.Dump(identity, v)
		if err != nil {
			logger.Warn("dump_source_failed", "variant", string(v), "error", err.Error())
			continue
		}
		if dump == nil {
			continue
		}
		replicaMs := c.LastUpdatedTimestamp(identity, v)
		if replicaMs != 0 && dump.TimestampMs <= replicaMs {
			continue
		}
		c.Replicate(dump, true)
	}
}

// RefreshModifiedDate bumps the replica's modification time without
// rewriting its contents, marking it current after a freshness check.
func (c *Cache) RefreshModifiedDate(identity string, variant models.Variant) {
	p, ok := c.dumpPath(identity, variant)
	if !ok {
		return
	}
	if err := c.be.Touch(p, c.clock()); err != nil {
		logger.Debug("dump_touch_failed", "variant", string(variant), "error", err.Error())
	}
}

// LoadUserConfigState pushes every user-scoped replica for userIdentity
// into the config library. The result maps each variant to whether its
// replica existed, decrypted, and loaded.
func (c *Cache) LoadUserConfigState(userIdentity string) map[models.Variant]bool {
	return c.loadConfigState(userIdentity, models.UserVariants())
}

// LoadGroupConfigStateIfNeeded pushes the group-scoped replicas for a
// group identity into the config library. Non-group identities load
// nothing.
func (c *Cache) LoadGroupConfigStateIfNeeded(groupIdentity string) map[models.Variant]bool {
	if !models.IsGroup(groupIdentity) {
		return map[models.Variant]bool{}
	}
	return c.loadConfigState(groupIdentity, models.GroupVariants())
}

func (c *Cache) loadConfigState(identity string, variants []models.Variant) map[models.Variant]bool {
	out := make(map[models.Variant]bool, len(variants))
	for _, v := range variants {
		out[v] = false
		p, ok := c.dumpPath(identity, v)
		if !ok {
			continue
		}
		var dump models.ConfigDump
		if c.store.ReadValue(p, &dump) != store.Hit {
			continue
		}
		if c.loader == nil {
			continue
		}
		if err := c.loader.LoadState(&dump); err != nil {
			logger.Warn("config_state_load_failed", "variant", string(v), "error", err.Error())
			continue
		}
		out[v] = true
	}
	return out
}

package cache

import (
	"extcache/pkg/models"
	"extcache/pkg/store"
)

// ReplicateNotificationSettings writes the thread-to-settings mapping,
// compacted so default entries are not stored.
func (c *Cache) ReplicateNotificationSettings(settings models.NotificationSettings) error {
	return c.store.WriteValue(settingsPath, settings.Compact())
}

// LoadNotificationSettings returns the cached mapping. Threads without an
// entry, and an absent or unreadable record, mean default settings.
func (c *Cache) LoadNotificationSettings() models.NotificationSettings {
	var s models.NotificationSettings
	if c.store.ReadValue(settingsPath, &s) != store.Hit {
		return models.NotificationSettings{}
	}
	if s == nil {
		return models.NotificationSettings{}
	}
	return s
}

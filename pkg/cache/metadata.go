package cache

import (
	"extcache/pkg/logger"
	"extcache/pkg/models"
	"extcache/pkg/store"
)

// SaveUserMetadata overwrites the identity record at its fixed path.
func (c *Cache) SaveUserMetadata(meta *models.UserMetadata) error {
	if meta == nil {
		return nil
	}
	if err := c.store.WriteValue(metadataPath, meta); err != nil {
		return err
	}
	logger.Debug("user_metadata_saved")
	return nil
}

// LoadUserMetadata returns the cached identity record, or nil when none
// is readable.
func (c *Cache) LoadUserMetadata() *models.UserMetadata {
	var meta models.UserMetadata
	if c.store.ReadValue(metadataPath, &meta) != store.Hit {
		return nil
	}
	return &meta
}

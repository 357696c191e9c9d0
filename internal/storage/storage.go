// Package storage provides the key-value stores visitor and admin state is
// kept in: a volatile per-session store and a persistent shared store.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"warmdelights/internal/logger"
)

var ErrClosed = errors.New("storage: store closed")

// Store is a string key-value store with Web Storage semantics: last write
// wins, no transactions across keys.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Clear(ctx context.Context) error
}

// Keys shared by the storefront and the admin dashboard.
const (
	KeyGalleryCache       = "warmDelights_gallery_cache"
	KeyGalleryExpiry      = "warmDelights_cache_expiry"
	KeyAdminGalleryCache  = "warmDelights_admin_cache"
	KeyAdminGalleryExpiry = "warmDelights_admin_cache_expiry"

	KeyEvents                 = "warmDelightsEvents"
	KeyAdminGalleryImages     = "adminGalleryImages"
	KeyAdminActivities        = "adminActivities"
	KeyAdminSessionActivities = "adminSessionActivities"

	KeyAdminFlag      = "isWarmDelightsAdmin"
	KeyAdminSession   = "adminSession"
	KeyAdminLoginTime = "adminLoginTime"
)

// ReadJSON decodes key into v. Missing keys, read failures and corrupt JSON
// all report false; a corrupt value is removed so it is not read again.
func ReadJSON(ctx context.Context, s Store, key string, v interface{}) bool {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		logger.LogWarn("Storage read failed for %s: %v", key, err)
		return false
	}
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		logger.LogWarn("Corrupt JSON in %s, clearing: %v", key, err)
		if rmErr := s.Remove(ctx, key); rmErr != nil {
			logger.LogWarn("Failed to clear corrupt key %s: %v", key, rmErr)
		}
		return false
	}
	return true
}

// WriteJSON encodes v and stores it under key.
func WriteJSON(ctx context.Context, s Store, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(raw))
}

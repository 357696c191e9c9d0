package gallery

import (
	"context"
	"strconv"
	"time"

	"warmdelights/internal/logger"
	"warmdelights/internal/storage"
)

// Cache holds the last successful remote payload in a volatile store for a
// fixed TTL. An expired payload is absent, never stale-but-usable.
type Cache struct {
	store     storage.Store
	key       string
	expiryKey string
	ttl       time.Duration
	now       func() time.Time
}

func NewCache(store storage.Store, key, expiryKey string, ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{store: store, key: key, expiryKey: expiryKey, ttl: ttl, now: now}
}

// NewPublicCache is the storefront gallery cache.
func NewPublicCache(store storage.Store, ttl time.Duration, now func() time.Time) *Cache {
	return NewCache(store, storage.KeyGalleryCache, storage.KeyGalleryExpiry, ttl, now)
}

// NewAdminCache is the dashboard gallery cache.
func NewAdminCache(store storage.Store, ttl time.Duration, now func() time.Time) *Cache {
	return NewCache(store, storage.KeyAdminGalleryCache, storage.KeyAdminGalleryExpiry, ttl, now)
}

func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the cached payload if it has not yet expired.
func (c *Cache) Get(ctx context.Context) (Payload, bool) {
	rawExpiry, ok, err := c.store.Get(ctx, c.expiryKey)
	if err != nil || !ok {
		return Payload{}, false
	}
	nanos, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		logger.LogWarn("Corrupt gallery cache expiry %q, clearing", rawExpiry)
		c.Invalidate(ctx)
		return Payload{}, false
	}
	if !c.now().Before(time.Unix(0, nanos)) {
		c.Invalidate(ctx)
		return Payload{}, false
	}

	var p Payload
	if !storage.ReadJSON(ctx, c.store, c.key, &p) {
		return Payload{}, false
	}
	p.ExpiresAt = time.Unix(0, nanos)
	return p, true
}

// Put overwrites the cache with a fresh payload expiring after the TTL.
func (c *Cache) Put(ctx context.Context, images []Image, source Source) (Payload, error) {
	now := c.now()
	p := Payload{
		Images:     images,
		CapturedAt: now,
		ExpiresAt:  now.Add(c.ttl),
		Source:     source,
	}
	if err := storage.WriteJSON(ctx, c.store, c.key, p); err != nil {
		return p, err
	}
	if err := c.store.Set(ctx, c.expiryKey, strconv.FormatInt(p.ExpiresAt.UnixNano(), 10)); err != nil {
		return p, err
	}
	return p, nil
}

// Invalidate removes the payload unconditionally.
func (c *Cache) Invalidate(ctx context.Context) {
	if err := c.store.Remove(ctx, c.key, c.expiryKey); err != nil {
		logger.LogWarn("Gallery cache clear failed: %v", err)
	}
}

// Package cache stores completed scan results keyed by tracked item so a
// repeat scan inside the TTL costs nothing and calls no provider.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/models"
)

// DefaultTTL is how long a scan result stays fresh.
const DefaultTTL = time.Hour

// Store is the key-value backend. Implementations may expire entries on
// their own; the Cache still re-checks freshness on read.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*models.CacheEntry, bool, error)
	Set(ctx context.Context, entry models.CacheEntry, ttl time.Duration) error
}

// Cache applies the TTL to a Store.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   *slog.Logger
}

// New returns a Cache. A non-positive ttl falls back to DefaultTTL.
func New(store Store, ttl time.Duration, log *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{store: store, ttl: ttl, now: time.Now, log: log}
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the cached result when it is younger than the TTL, measured
// from the result's own timestamp.
func (c *Cache) Get(ctx context.Context, id uuid.UUID) (*models.FullScanResult, bool, error) {
	entry, ok, err := c.store.Get(ctx, id)
	if err != nil || !ok || entry == nil {
		return nil, false, err
	}
	if !c.Fresh(&entry.Result) {
		return nil, false, nil
	}
	res := entry.Result
	return &res, true, nil
}

// Fresh reports whether r is within the TTL.
func (c *Cache) Fresh(r *models.FullScanResult) bool {
	if r == nil || r.Timestamp.IsZero() {
		return false
	}
	return c.now().Sub(r.Timestamp) < c.ttl
}

// Put stores the result for id. Last write wins.
func (c *Cache) Put(ctx context.Context, id uuid.UUID, r *models.FullScanResult) error {
	entry := models.CacheEntry{TrackedItemID: id, Result: *r, StoredAt: c.now()}
	remaining := c.ttl - c.now().Sub(r.Timestamp)
	if remaining <= 0 {
		c.log.Debug("cache: result already stale, skipping write", "tracked_item_id", id)
		return nil
	}
	return c.store.Set(ctx, entry, remaining)
}

package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/blogspy/backend/internal/models"
)

// MemoryStore keeps entries in process. Used in development and tests.
type MemoryStore struct {
	c *gocache.Cache
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{c: gocache.New(ttl, 10*time.Minute)}
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.CacheEntry, bool, error) {
	x, found := m.c.Get(id.String())
	if !found {
		return nil, false, nil
	}
	entry := x.(models.CacheEntry)
	return &entry, true, nil
}

func (m *MemoryStore) Set(_ context.Context, entry models.CacheEntry, ttl time.Duration) error {
	m.c.Set(entry.TrackedItemID.String(), entry, ttl)
	return nil
}

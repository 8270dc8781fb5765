package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/models"
)

// MemoryStore is the in-process Store for development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*models.TrackedItem
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]*models.TrackedItem), now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, item *models.TrackedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.UserID == item.UserID && it.Query == item.Query && it.Brand == item.Brand {
			return ErrDuplicate
		}
	}
	now := m.now()
	item.CreatedAt, item.UpdatedAt = now, now
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, userID, id uuid.UUID) (*models.TrackedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok || it.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, userID uuid.UUID) ([]*models.TrackedItem, error) {
	return m.filter(func(it *models.TrackedItem) bool { return it.UserID == userID }, 0), nil
}

func (m *MemoryStore) Count(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, it := range m.items {
		if it.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Delete(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || it.UserID != userID {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryStore) DueForRescan(_ context.Context, staleBefore time.Time, limit int) ([]*models.TrackedItem, error) {
	return m.filter(func(it *models.TrackedItem) bool {
		return it.AutoRescan && (it.LastScannedAt == nil || it.LastScannedAt.Before(staleBefore))
	}, limit), nil
}

func (m *MemoryStore) MarkScanned(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	if it.LastScannedAt == nil || it.LastScannedAt.Before(at) {
		it.LastScannedAt = &at
		it.UpdatedAt = m.now()
	}
	return nil
}

func (m *MemoryStore) filter(keep func(*models.TrackedItem) bool, limit int) []*models.TrackedItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.TrackedItem
	for _, it := range m.items {
		if keep(it) {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

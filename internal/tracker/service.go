// Package tracker manages tracked items: saved query and brand pairs whose ID
// keys the result cache and drives periodic rescans.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/models"
	"github.com/blogspy/backend/internal/providers"
)

const maxItemsPerUser = 100

var (
	ErrNotFound     = errors.New("tracked item not found")
	ErrInvalidItem  = errors.New("query and brand are required")
	ErrLimitReached = errors.New("tracked item limit reached")
	ErrDuplicate    = errors.New("query and brand already tracked")
)

// Store persists tracked items. Lookups scoped by user return ErrNotFound
// for items owned by someone else.
type Store interface {
	Create(ctx context.Context, item *models.TrackedItem) error
	Get(ctx context.Context, userID, id uuid.UUID) (*models.TrackedItem, error)
	List(ctx context.Context, userID uuid.UUID) ([]*models.TrackedItem, error)
	Count(ctx context.Context, userID uuid.UUID) (int, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// DueForRescan lists auto-rescan items never scanned or last scanned before staleBefore.
	DueForRescan(ctx context.Context, staleBefore time.Time, limit int) ([]*models.TrackedItem, error)
	MarkScanned(ctx context.Context, id uuid.UUID, at time.Time) error
}

type Service interface {
	Create(ctx context.Context, userID uuid.UUID, query string, brand models.Brand, autoRescan bool) (*models.TrackedItem, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.TrackedItem, error)
	List(ctx context.Context, userID uuid.UUID) ([]*models.TrackedItem, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DueForRescan(ctx context.Context, staleBefore time.Time, limit int) ([]*models.TrackedItem, error)
	MarkScanned(ctx context.Context, id uuid.UUID, at time.Time) error
}

type service struct {
	store Store
}

func NewService(store Store) Service {
	return &service{store: store}
}

var _ Service = (*service)(nil)

func (s *service) Create(ctx context.Context, userID uuid.UUID, query string, brand models.Brand, autoRescan bool) (*models.TrackedItem, error) {
	query = strings.TrimSpace(query)
	brand.Name = strings.TrimSpace(brand.Name)
	brand.Domain = providers.NormalizeDomain(brand.Domain)
	if query == "" || (brand.Name == "" && brand.Domain == "") {
		return nil, ErrInvalidItem
	}
	n, err := s.store.Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count tracked items: %w", err)
	}
	if n >= maxItemsPerUser {
		return nil, ErrLimitReached
	}
	item := &models.TrackedItem{
		ID:         uuid.New(),
		UserID:     userID,
		Query:      query,
		Brand:      brand,
		AutoRescan: autoRescan,
	}
	if err := s.store.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*models.TrackedItem, error) {
	return s.store.Get(ctx, userID, id)
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]*models.TrackedItem, error) {
	return s.store.List(ctx, userID)
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.Delete(ctx, userID, id)
}

func (s *service) DueForRescan(ctx context.Context, staleBefore time.Time, limit int) ([]*models.TrackedItem, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.DueForRescan(ctx, staleBefore, limit)
}

// MarkScanned records when the item's result was last refreshed.
func (s *service) MarkScanned(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.store.MarkScanned(ctx, id, at)
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blogspy/backend/internal/models"
)

// PostgresStore keeps the latest result on the tracked item row itself.
// Expiry is left to the Cache's freshness check.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.CacheEntry, bool, error) {
	var (
		raw       []byte
		scannedAt *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT last_result, last_scanned_at FROM tracked_items WHERE id = $1`, id,
	).Scan(&raw, &scannedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select cached result: %w", err)
	}
	if raw == nil || scannedAt == nil {
		return nil, false, nil
	}
	entry := models.CacheEntry{TrackedItemID: id, StoredAt: *scannedAt}
	if err := json.Unmarshal(raw, &entry.Result); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	return &entry, true, nil
}

// Set updates the tracked item; a missing row is not an error.
func (s *PostgresStore) Set(ctx context.Context, entry models.CacheEntry, _ time.Duration) error {
	raw, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE tracked_items SET last_result = $1, last_scanned_at = $2, updated_at = NOW() WHERE id = $3`,
		raw, entry.StoredAt, entry.TrackedItemID,
	)
	if err != nil {
		return fmt.Errorf("update cached result: %w", err)
	}
	return nil
}

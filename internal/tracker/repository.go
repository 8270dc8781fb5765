package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blogspy/backend/internal/models"
)

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectItem = `
	SELECT id, user_id, query, brand_name, brand_domain, auto_rescan, last_result, last_scanned_at, created_at, updated_at
	FROM tracked_items`

func (r *Repository) Create(ctx context.Context, item *models.TrackedItem) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tracked_items (id, user_id, query, brand_name, brand_domain, auto_rescan)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, item.ID, item.UserID, item.Query, item.Brand.Name, item.Brand.Domain, item.AutoRescan).Scan(&item.CreatedAt, &item.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (r *Repository) Get(ctx context.Context, userID, id uuid.UUID) (*models.TrackedItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, selectItem+` WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]*models.TrackedItem, error) {
	rows, err := r.pool.Query(ctx, selectItem+` WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repository) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tracked_items WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tracked_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DueForRescan(ctx context.Context, staleBefore time.Time, limit int) ([]*models.TrackedItem, error) {
	rows, err := r.pool.Query(ctx, selectItem+`
		WHERE auto_rescan AND (last_scanned_at IS NULL OR last_scanned_at < $1)
		ORDER BY last_scanned_at NULLS FIRST
		LIMIT $2`, staleBefore, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repository) MarkScanned(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tracked_items SET last_scanned_at = $2, updated_at = NOW()
		WHERE id = $1 AND (last_scanned_at IS NULL OR last_scanned_at < $2)`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tracked_items WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func collect(rows pgx.Rows) ([]*models.TrackedItem, error) {
	defer rows.Close()
	var list []*models.TrackedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, rows.Err()
}

func scanItem(row pgx.Row) (*models.TrackedItem, error) {
	var (
		item models.TrackedItem
		raw  []byte
	)
	err := row.Scan(&item.ID, &item.UserID, &item.Query, &item.Brand.Name, &item.Brand.Domain, &item.AutoRescan,
		&raw, &item.LastScannedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		var res models.FullScanResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("decode last result for %s: %w", item.ID, err)
		}
		item.LastResult = &res
	}
	return &item, nil
}

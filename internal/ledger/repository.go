package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blogspy/backend/internal/models"
)

// PostgresStore keeps balances in credit_balances and the append-only log in credit_transactions.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

const balanceColumns = `user_id, total, used, bonus, created_at, updated_at`

func scanBalance(row pgx.Row) (*models.CreditBalance, error) {
	var b models.CreditBalance
	if err := row.Scan(&b.UserID, &b.Total, &b.Used, &b.Bonus, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Normalize()
	return &b, nil
}

func ensureRow(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO credit_balances (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (s *PostgresStore) EnsureBalance(ctx context.Context, userID uuid.UUID) (*models.CreditBalance, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO credit_balances (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, err
	}
	return scanBalance(s.pool.QueryRow(ctx, `SELECT `+balanceColumns+` FROM credit_balances WHERE user_id = $1`, userID))
}

// Charge is a single conditional UPDATE: two concurrent charges cannot both
// pass the balance check because the WHERE clause is re-evaluated under the row lock.
func (s *PostgresStore) Charge(ctx context.Context, userID uuid.UUID, amount int, e Entry) (*models.CreditBalance, *models.CreditTransaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if err := ensureRow(ctx, tx, userID); err != nil {
		return nil, nil, err
	}
	bal, err := scanBalance(tx.QueryRow(ctx, `
		UPDATE credit_balances
		SET used = used + $1, updated_at = now()
		WHERE user_id = $2 AND total - used >= $1
		RETURNING `+balanceColumns, amount, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrInsufficientCredits
	}
	if err != nil {
		return nil, nil, err
	}
	entry, err := insertTransaction(ctx, tx, userID, -amount, bal.Available, e)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return bal, entry, nil
}

func (s *PostgresStore) Refund(ctx context.Context, userID uuid.UUID, amount int, e Entry) (*models.CreditBalance, *models.CreditTransaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if err := ensureRow(ctx, tx, userID); err != nil {
		return nil, nil, err
	}
	var usedBefore int
	if err := tx.QueryRow(ctx, `SELECT used FROM credit_balances WHERE user_id = $1 FOR UPDATE`, userID).Scan(&usedBefore); err != nil {
		return nil, nil, err
	}
	bal, err := scanBalance(tx.QueryRow(ctx, `
		UPDATE credit_balances
		SET used = GREATEST(used - $1, 0), updated_at = now()
		WHERE user_id = $2
		RETURNING `+balanceColumns, amount, userID))
	if err != nil {
		return nil, nil, err
	}
	entry, err := insertTransaction(ctx, tx, userID, usedBefore-bal.Used, bal.Available, e)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return bal, entry, nil
}

func (s *PostgresStore) Credit(ctx context.Context, userID uuid.UUID, credits, bonus int, e Entry) (*models.CreditBalance, *models.CreditTransaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if err := ensureRow(ctx, tx, userID); err != nil {
		return nil, nil, err
	}
	bal, err := scanBalance(tx.QueryRow(ctx, `
		UPDATE credit_balances
		SET total = total + $1 + $2, bonus = bonus + $2, updated_at = now()
		WHERE user_id = $3
		RETURNING `+balanceColumns, credits, bonus, userID))
	if err != nil {
		return nil, nil, err
	}
	entry, err := insertTransaction(ctx, tx, userID, credits+bonus, bal.Available, e)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return bal, entry, nil
}

// insertTransaction appends the ledger row inside the caller's transaction.
// A unique violation on (user_id, type, reference_id) maps to ErrDuplicateReference
// and rolls back the balance update with it.
func insertTransaction(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount, balanceAfter int, e Entry) (*models.CreditTransaction, error) {
	entry := &models.CreditTransaction{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         e.Type,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Reason:       e.Reason,
		ReferenceID:  e.ReferenceID,
		Metadata:     e.Metadata,
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (id, user_id, type, amount, balance_after, reason, reference_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, entry.ID, entry.UserID, entry.Type, entry.Amount, entry.BalanceAfter, entry.Reason, entry.ReferenceID, entry.Metadata).Scan(&entry.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateReference
		}
		return nil, fmt.Errorf("insert credit transaction: %w", err)
	}
	return entry, nil
}

const transactionColumns = `id, user_id, type, amount, balance_after, reason, reference_id, metadata, created_at`

func collectTransactions(rows pgx.Rows) ([]*models.CreditTransaction, error) {
	defer rows.Close()
	var list []*models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceAfter, &t.Reason, &t.ReferenceID, &t.Metadata, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

func (s *PostgresStore) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.CreditTransaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM credit_transactions WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (s *PostgresStore) ListTransactionsSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.CreditTransaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM credit_transactions WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`, userID, since)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogspy/backend/internal/database"
	"github.com/blogspy/backend/internal/models"
)

// ---------------------------------------------------------------------------
// PostgresStore integration (needs DATABASE_URL)
// ---------------------------------------------------------------------------

func newPostgresStore(t *testing.T) (*PostgresStore, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool, slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewPostgresStore(pool), pool
}

func createUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, 'x')`, id, id.String()+"@ledger.test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func TestPostgresStore_ConcurrentChargesNeverOverdraw(t *testing.T) {
	store, pool := newPostgresStore(t)
	svc := NewService(store, nil)
	ctx := context.Background()
	user := createUser(t, pool)
	_, err := svc.AddCredits(ctx, user, 10, 0, "seed", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, short := 0, 0
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ReserveAndCharge(ctx, user, 1, "scan", uuid.NewString(), nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInsufficientCredits):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 15, short)
	b, err := svc.GetBalance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 10, b.Used)
	assert.Equal(t, 0, b.Available)
}

func TestPostgresStore_RefundOncePerReference(t *testing.T) {
	store, pool := newPostgresStore(t)
	svc := NewService(store, nil)
	ctx := context.Background()
	user := createUser(t, pool)
	_, err := svc.AddCredits(ctx, user, 5, 0, "seed", "")
	require.NoError(t, err)

	ref := uuid.NewString()
	_, err = svc.ReserveAndCharge(ctx, user, 2, "scan", ref, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Refund(ctx, user, 2, "scan refund", ref, nil)
		}()
	}
	wg.Wait()

	refunded := 0
	for _, err := range errs {
		if err == nil {
			refunded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyRefunded)
	}
	assert.Equal(t, 1, refunded)

	b, err := svc.GetBalance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Used)
	assert.Equal(t, 5, b.Available)

	txs, err := store.ListTransactionsSince(ctx, user, time.Time{})
	require.NoError(t, err)
	sum := 0
	for _, tx := range txs {
		sum += tx.Amount
	}
	assert.Equal(t, b.Available, sum)
}

func TestPostgresStore_RefundFloorsAtZero(t *testing.T) {
	store, pool := newPostgresStore(t)
	ctx := context.Background()
	user := createUser(t, pool)

	bal, entry, err := store.Refund(ctx, user, 3, Entry{Type: models.CreditTxRefund, Reason: "stray", ReferenceID: uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Used)
	assert.Equal(t, 0, entry.Amount)
}

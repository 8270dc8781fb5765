package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/models"
)

// MemoryStore is a process-local Store. A single mutex makes every
// mutation (balance update + transaction append) atomic.
type MemoryStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]*models.CreditBalance
	txs      []*models.CreditTransaction
	refs     map[string]struct{}
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[uuid.UUID]*models.CreditBalance),
		refs:     make(map[string]struct{}),
		now:      time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// row returns the live balance row. Caller holds mu.
func (s *MemoryStore) row(userID uuid.UUID) *models.CreditBalance {
	b, ok := s.balances[userID]
	if !ok {
		now := s.now()
		b = &models.CreditBalance{UserID: userID, CreatedAt: now, UpdatedAt: now}
		s.balances[userID] = b
	}
	return b
}

func snapshot(b *models.CreditBalance) *models.CreditBalance {
	cp := *b
	cp.Normalize()
	return &cp
}

func refKey(userID uuid.UUID, e Entry) string {
	return userID.String() + "|" + e.Type + "|" + e.ReferenceID
}

// appendTx records the entry. Caller holds mu and has checked the reference.
func (s *MemoryStore) appendTx(userID uuid.UUID, amount int, b *models.CreditBalance, e Entry) *models.CreditTransaction {
	t := &models.CreditTransaction{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         e.Type,
		Amount:       amount,
		BalanceAfter: b.Total - b.Used,
		Reason:       e.Reason,
		ReferenceID:  e.ReferenceID,
		Metadata:     e.Metadata,
		CreatedAt:    s.now(),
	}
	s.txs = append(s.txs, t)
	if e.ReferenceID != "" {
		s.refs[refKey(userID, e)] = struct{}{}
	}
	cp := *t
	return &cp
}

func (s *MemoryStore) duplicate(userID uuid.UUID, e Entry) bool {
	if e.ReferenceID == "" {
		return false
	}
	_, ok := s.refs[refKey(userID, e)]
	return ok
}

func (s *MemoryStore) EnsureBalance(_ context.Context, userID uuid.UUID) (*models.CreditBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.row(userID)), nil
}

func (s *MemoryStore) Charge(_ context.Context, userID uuid.UUID, amount int, e Entry) (*models.CreditBalance, *models.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.row(userID)
	if b.Total-b.Used < amount {
		return nil, nil, ErrInsufficientCredits
	}
	if s.duplicate(userID, e) {
		return nil, nil, ErrDuplicateReference
	}
	b.Used += amount
	b.UpdatedAt = s.now()
	t := s.appendTx(userID, -amount, b, e)
	return snapshot(b), t, nil
}

func (s *MemoryStore) Refund(_ context.Context, userID uuid.UUID, amount int, e Entry) (*models.CreditBalance, *models.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duplicate(userID, e) {
		return nil, nil, ErrDuplicateReference
	}
	b := s.row(userID)
	before := b.Used
	b.Used -= amount
	if b.Used < 0 {
		b.Used = 0
	}
	b.UpdatedAt = s.now()
	t := s.appendTx(userID, before-b.Used, b, e)
	return snapshot(b), t, nil
}

func (s *MemoryStore) Credit(_ context.Context, userID uuid.UUID, credits, bonus int, e Entry) (*models.CreditBalance, *models.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duplicate(userID, e) {
		return nil, nil, ErrDuplicateReference
	}
	b := s.row(userID)
	b.Total += credits + bonus
	b.Bonus += bonus
	b.UpdatedAt = s.now()
	t := s.appendTx(userID, credits+bonus, b, e)
	return snapshot(b), t, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, userID uuid.UUID, limit, offset int) ([]*models.CreditTransaction, error) {
	all := s.userTxs(userID, time.Time{})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) ListTransactionsSince(_ context.Context, userID uuid.UUID, since time.Time) ([]*models.CreditTransaction, error) {
	return s.userTxs(userID, since), nil
}

// userTxs returns copies, newest first.
func (s *MemoryStore) userTxs(userID uuid.UUID, since time.Time) []*models.CreditTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CreditTransaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		t := s.txs[i]
		if t.UserID != userID || t.CreatedAt.Before(since) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out
}

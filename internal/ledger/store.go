package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/models"
)

var (
	// ErrInsufficientCredits is returned when available credits are below the requested charge.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be > 0")
	// ErrDuplicateReference is returned by a Store when a transaction with the same
	// type and reference already exists for the user.
	ErrDuplicateReference = errors.New("duplicate ledger reference")
	// ErrAlreadyRefunded is returned when a refund for the same reference was already recorded.
	ErrAlreadyRefunded = errors.New("already refunded")
	// ErrAlreadyCharged is returned when a usage charge for the same reference was already recorded.
	ErrAlreadyCharged = errors.New("already charged")
	// ErrPromoRedeemed is returned when the user already redeemed the promo code.
	ErrPromoRedeemed = errors.New("promo code already redeemed")
)

// Entry describes the ledger transaction a mutation appends. The store fills
// in the signed amount and the resulting balance.
type Entry struct {
	Type        string
	Reason      string
	ReferenceID string
	Metadata    map[string]any
}

// Store is the backing store of the ledger. Every mutation must update the
// balance row and append exactly one transaction in a single unit of work.
type Store interface {
	// EnsureBalance returns the balance, creating a zero row on first access.
	EnsureBalance(ctx context.Context, userID uuid.UUID) (*models.CreditBalance, error)
	// Charge increments used by amount iff total-used >= amount, otherwise ErrInsufficientCredits.
	Charge(ctx context.Context, userID uuid.UUID, amount int, e Entry) (*models.CreditBalance, *models.CreditTransaction, error)
	// Refund decrements used by amount, floored at 0.
	Refund(ctx context.Context, userID uuid.UUID, amount int, e Entry) (*models.CreditBalance, *models.CreditTransaction, error)
	// Credit adds credits+bonus to total and bonus to the bonus counter.
	Credit(ctx context.Context, userID uuid.UUID, credits, bonus int, e Entry) (*models.CreditBalance, *models.CreditTransaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.CreditTransaction, error)
	ListTransactionsSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.CreditTransaction, error)
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/metrics"
	"github.com/blogspy/backend/internal/models"
)

// Service is the credit ledger. All balance mutations go through the Store's
// atomic primitives; nothing here reads a balance and writes it back.
type Service interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.CreditBalance, error)
	ReserveAndCharge(ctx context.Context, userID uuid.UUID, amount int, reason, ref string, meta map[string]any) (*models.CreditBalance, error)
	Refund(ctx context.Context, userID uuid.UUID, amount int, reason, ref string, meta map[string]any) (*models.CreditBalance, error)
	AddCredits(ctx context.Context, userID uuid.UUID, credits, bonus int, reason, ref string) (*models.CreditBalance, error)
	Purchase(ctx context.Context, userID uuid.UUID, packageID, paymentRef string) (*models.CreditBalance, error)
	GrantPromo(ctx context.Context, userID uuid.UUID, code string, credits int) (*models.CreditBalance, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.CreditTransaction, error)
	UsageSummary(ctx context.Context, userID uuid.UUID, since time.Time) (*models.UsageSummary, error)
}

type service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{store: store, log: log}
}

var _ Service = (*service)(nil)

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (*models.CreditBalance, error) {
	return s.store.EnsureBalance(ctx, userID)
}

func (s *service) ReserveAndCharge(ctx context.Context, userID uuid.UUID, amount int, reason, ref string, meta map[string]any) (*models.CreditBalance, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	bal, _, err := s.store.Charge(ctx, userID, amount, Entry{Type: models.CreditTxUsage, Reason: reason, ReferenceID: ref, Metadata: meta})
	switch {
	case errors.Is(err, ErrDuplicateReference):
		return nil, ErrAlreadyCharged
	case err != nil:
		return nil, err
	}
	s.log.Info("credits charged", "user_id", userID, "amount", amount, "available", bal.Available, "reference_id", ref)
	metrics.RecordCredits(models.CreditTxUsage, amount)
	return bal, nil
}

// Refund undoes a prior charge. It does not add new credits to total.
func (s *service) Refund(ctx context.Context, userID uuid.UUID, amount int, reason, ref string, meta map[string]any) (*models.CreditBalance, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	bal, _, err := s.store.Refund(ctx, userID, amount, Entry{Type: models.CreditTxRefund, Reason: reason, ReferenceID: ref, Metadata: meta})
	switch {
	case errors.Is(err, ErrDuplicateReference):
		return nil, ErrAlreadyRefunded
	case err != nil:
		return nil, err
	}
	s.log.Info("credits refunded", "user_id", userID, "amount", amount, "available", bal.Available, "reference_id", ref)
	metrics.RecordCredits(models.CreditTxRefund, amount)
	return bal, nil
}

func (s *service) AddCredits(ctx context.Context, userID uuid.UUID, credits, bonus int, reason, ref string) (*models.CreditBalance, error) {
	if credits < 0 || bonus < 0 || credits+bonus == 0 {
		return nil, ErrInvalidAmount
	}
	txType := models.CreditTxPurchase
	if credits == 0 {
		txType = models.CreditTxBonus
	}
	bal, _, err := s.store.Credit(ctx, userID, credits, bonus, Entry{
		Type:        txType,
		Reason:      reason,
		ReferenceID: ref,
		Metadata:    map[string]any{"credits": credits, "bonus": bonus},
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordCredits(txType, credits+bonus)
	return bal, nil
}

// Purchase credits the catalogue package. paymentRef makes repeated
// confirmations of the same payment idempotent.
func (s *service) Purchase(ctx context.Context, userID uuid.UUID, packageID, paymentRef string) (*models.CreditBalance, error) {
	pkg, err := FindPackage(packageID)
	if err != nil {
		return nil, err
	}
	bal, err := s.AddCredits(ctx, userID, pkg.Credits, pkg.Bonus, "purchase "+pkg.Name, paymentRef)
	if errors.Is(err, ErrDuplicateReference) {
		s.log.Warn("duplicate purchase confirmation ignored", "user_id", userID, "payment_ref", paymentRef)
		return s.store.EnsureBalance(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("purchase %s: %w", packageID, err)
	}
	s.log.Info("credits purchased", "user_id", userID, "package", pkg.ID, "total", bal.Total)
	return bal, nil
}

func (s *service) GrantPromo(ctx context.Context, userID uuid.UUID, code string, credits int) (*models.CreditBalance, error) {
	if credits <= 0 {
		return nil, ErrInvalidAmount
	}
	bal, _, err := s.store.Credit(ctx, userID, 0, credits, Entry{
		Type:        models.CreditTxPromo,
		Reason:      "promo " + code,
		ReferenceID: code,
	})
	if errors.Is(err, ErrDuplicateReference) {
		return nil, ErrPromoRedeemed
	}
	if err != nil {
		return nil, err
	}
	metrics.RecordCredits(models.CreditTxPromo, credits)
	return bal, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListTransactions(ctx, userID, limit, offset)
}

func (s *service) UsageSummary(ctx context.Context, userID uuid.UUID, since time.Time) (*models.UsageSummary, error) {
	txs, err := s.store.ListTransactionsSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	sum := &models.UsageSummary{Since: since}
	for _, t := range txs {
		switch t.Type {
		case models.CreditTxUsage:
			sum.ScansCharged++
			sum.CreditsCharged += -t.Amount
		case models.CreditTxRefund:
			sum.ScansRefunded++
			sum.CreditsRefunded += t.Amount
		}
	}
	sum.NetCreditsUsed = sum.CreditsCharged - sum.CreditsRefunded
	return sum, nil
}

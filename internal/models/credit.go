package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit transaction types. Amounts are signed: usage is negative, the rest positive.
const (
	CreditTxPurchase = "purchase"
	CreditTxUsage    = "usage"
	CreditTxRefund   = "refund"
	CreditTxBonus    = "bonus"
	CreditTxPromo    = "promo"
)

// CreditBalance is a user's prepaid credit account.
// Available is always derived as Total - Used.
type CreditBalance struct {
	UserID    uuid.UUID `json:"user_id"`
	Total     int       `json:"total"`
	Used      int       `json:"used"`
	Available int       `json:"available"`
	Bonus     int       `json:"bonus"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize recomputes Available from Total and Used.
func (b *CreditBalance) Normalize() {
	b.Available = b.Total - b.Used
}

// CreditTransaction is an append-only ledger entry.
type CreditTransaction struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	Type         string         `json:"type"`
	Amount       int            `json:"amount"`
	BalanceAfter int            `json:"balance_after"`
	Reason       string         `json:"reason"`
	ReferenceID  string         `json:"reference_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// UsageSummary aggregates scan billing for a user over a period.
type UsageSummary struct {
	Since           time.Time `json:"since"`
	ScansCharged    int       `json:"scans_charged"`
	ScansRefunded   int       `json:"scans_refunded"`
	CreditsCharged  int       `json:"credits_charged"`
	CreditsRefunded int       `json:"credits_refunded"`
	NetCreditsUsed  int       `json:"net_credits_used"`
}

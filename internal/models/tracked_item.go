package models

import (
	"time"

	"github.com/google/uuid"
)

// TrackedItem is a saved query+brand pair owned by a user. Its ID keys the result cache.
type TrackedItem struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Query         string          `json:"query"`
	Brand         Brand           `json:"brand"`
	AutoRescan    bool            `json:"auto_rescan"`
	LastResult    *FullScanResult `json:"last_result,omitempty"`
	LastScannedAt *time.Time      `json:"last_scanned_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/ledger"
	"github.com/blogspy/backend/internal/middleware"
	"github.com/blogspy/backend/internal/models"
	"github.com/blogspy/backend/internal/scan"
	"github.com/blogspy/backend/internal/tracker"
	"github.com/blogspy/backend/internal/validation"
)

// Scanner runs scans.
type Scanner interface {
	RunScan(ctx context.Context, req scan.Request) (*scan.Response, error)
}

// ItemLookup resolves a tracked item owned by the user and records refreshes.
type ItemLookup interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*models.TrackedItem, error)
	MarkScanned(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ScanHandler serves the scan endpoints.
type ScanHandler struct {
	Scanner   Scanner
	Items     ItemLookup
	Validator *validation.Validator
	Logger    *slog.Logger
}

type scanRequest struct {
	Query         string                `json:"query"`
	Brand         models.Brand          `json:"brand"`
	TrackedItemID *uuid.UUID            `json:"tracked_item_id,omitempty"`
	CrawlerPolicy *models.CrawlerPolicy `json:"crawler_policy,omitempty"`
}

// CreateScan handles POST /api/v1/scans. With a tracked_item_id the item's
// saved query and brand are used and the result cache applies.
func (h *ScanHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body scanRequest
	if !decodeBody(w, r, h.Validator, validation.Scan, &body) {
		return
	}
	req := scan.Request{
		UserID:        userID,
		Query:         body.Query,
		Brand:         body.Brand,
		CrawlerPolicy: body.CrawlerPolicy,
	}
	if body.TrackedItemID != nil {
		item, ok := h.lookupItem(w, r, userID, *body.TrackedItemID)
		if !ok {
			return
		}
		req.Query, req.Brand, req.TrackedItemID = item.Query, item.Brand, &item.ID
	}
	h.run(w, r, req)
}

// ScanTrackedItem handles POST /api/v1/tracked-items/{id}/scan.
func (h *ScanHandler) ScanTrackedItem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid tracked item id")
		return
	}
	item, ok := h.lookupItem(w, r, userID, id)
	if !ok {
		return
	}
	h.run(w, r, scan.Request{UserID: userID, Query: item.Query, Brand: item.Brand, TrackedItemID: &item.ID})
}

func (h *ScanHandler) lookupItem(w http.ResponseWriter, r *http.Request, userID, id uuid.UUID) (*models.TrackedItem, bool) {
	item, err := h.Items.Get(r.Context(), userID, id)
	if errors.Is(err, tracker.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tracked item not found")
		return nil, false
	}
	if err != nil {
		h.Logger.Error("load tracked item", "tracked_item_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return item, true
}

func (h *ScanHandler) run(w http.ResponseWriter, r *http.Request, req scan.Request) {
	resp, err := h.Scanner.RunScan(r.Context(), req)
	if err == nil && req.TrackedItemID != nil && resp.Result != nil {
		if mErr := h.Items.MarkScanned(r.Context(), *req.TrackedItemID, resp.Result.Timestamp); mErr != nil {
			h.Logger.Warn("mark tracked item scanned", "tracked_item_id", *req.TrackedItemID, "error", mErr)
		}
	}
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, scan.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientCredits):
		writeJSON(w, http.StatusPaymentRequired, resp)
	case errors.Is(err, scan.ErrTotalFailure):
		writeJSON(w, http.StatusBadGateway, resp)
	case errors.Is(err, scan.ErrRefundFailed), errors.Is(err, scan.ErrLedgerUnavailable):
		if resp == nil {
			resp = &scan.Response{Error: "internal error"}
		}
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		h.Logger.Error("scan failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

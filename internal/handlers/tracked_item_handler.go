package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/middleware"
	"github.com/blogspy/backend/internal/models"
	"github.com/blogspy/backend/internal/tracker"
	"github.com/blogspy/backend/internal/validation"
)

// CachedResults reads the latest fresh result for a tracked item.
type CachedResults interface {
	Get(ctx context.Context, id uuid.UUID) (*models.FullScanResult, bool, error)
}

// TrackedItemHandler serves /api/v1/tracked-items.
type TrackedItemHandler struct {
	Items     tracker.Service
	Cache     CachedResults
	Validator *validation.Validator
	Logger    *slog.Logger
}

type createItemRequest struct {
	Query      string       `json:"query"`
	Brand      models.Brand `json:"brand"`
	AutoRescan bool         `json:"auto_rescan"`
}

// POST /api/v1/tracked-items
func (h *TrackedItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createItemRequest
	if !decodeBody(w, r, h.Validator, validation.TrackedItem, &req) {
		return
	}
	item, err := h.Items.Create(r.Context(), userID, req.Query, req.Brand, req.AutoRescan)
	switch {
	case errors.Is(err, tracker.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracker.ErrDuplicate), errors.Is(err, tracker.ErrLimitReached):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		h.Logger.Error("create tracked item", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusCreated, item)
	}
}

// GET /api/v1/tracked-items
func (h *TrackedItemHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	items, err := h.Items.List(r.Context(), userID)
	if err != nil {
		h.Logger.Error("list tracked items", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []*models.TrackedItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GET /api/v1/tracked-items/{id}
func (h *TrackedItemHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	item, err := h.Items.Get(r.Context(), userID, id)
	if errors.Is(err, tracker.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tracked item not found")
		return
	}
	if err != nil {
		h.Logger.Error("get tracked item", "tracked_item_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if item.LastResult == nil && h.Cache != nil {
		if res, hit, err := h.Cache.Get(r.Context(), id); err == nil && hit {
			item.LastResult = res
			item.LastScannedAt = &res.Timestamp
		}
	}
	writeJSON(w, http.StatusOK, item)
}

// DELETE /api/v1/tracked-items/{id}
func (h *TrackedItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	err := h.Items.Delete(r.Context(), userID, id)
	if errors.Is(err, tracker.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tracked item not found")
		return
	}
	if err != nil {
		h.Logger.Error("delete tracked item", "tracked_item_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

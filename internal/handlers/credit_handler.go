package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/ledger"
	"github.com/blogspy/backend/internal/middleware"
	"github.com/blogspy/backend/internal/validation"
)

const defaultUsageWindow = 30 * 24 * time.Hour

// CreditHandler serves /api/v1/credits.
type CreditHandler struct {
	Ledger    ledger.Service
	Validator *validation.Validator
	// Promos maps upper-case promo codes to the credits they grant.
	Promos map[string]int
	// PurchasesEnabled allows crediting packages without a payment gateway.
	PurchasesEnabled bool
	Logger           *slog.Logger
}

type purchaseRequest struct {
	PackageID  string `json:"package_id"`
	PaymentRef string `json:"payment_ref"`
}

type promoRequest struct {
	Code string `json:"code"`
}

func (h *CreditHandler) user(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id := middleware.UserFromCtx(r.Context())
	if id == uuid.Nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/v1/credits/balance
func (h *CreditHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	bal, err := h.Ledger.GetBalance(r.Context(), userID)
	if err != nil {
		h.Logger.Error("get balance", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

// GET /api/v1/credits/transactions?limit=&offset=
func (h *CreditHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	txs, err := h.Ledger.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.Logger.Error("list transactions", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// GET /api/v1/credits/packages
func (h *CreditHandler) ListPackages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"packages": ledger.Packages})
}

// POST /api/v1/credits/purchase
func (h *CreditHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	if !h.PurchasesEnabled {
		writeError(w, http.StatusForbidden, "direct purchases are disabled")
		return
	}
	var req purchaseRequest
	if !decodeBody(w, r, h.Validator, validation.Purchase, &req) {
		return
	}
	if req.PaymentRef == "" {
		req.PaymentRef = "direct:" + uuid.NewString()
	}
	bal, err := h.Ledger.Purchase(r.Context(), userID, req.PackageID, req.PaymentRef)
	switch {
	case errors.Is(err, ledger.ErrUnknownPackage):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.Logger.Error("purchase", "user_id", userID, "package", req.PackageID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, bal)
	}
}

// POST /api/v1/credits/promo
func (h *CreditHandler) RedeemPromo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req promoRequest
	if !decodeBody(w, r, h.Validator, validation.Promo, &req) {
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	credits, found := h.Promos[code]
	if !found {
		writeError(w, http.StatusNotFound, "unknown promo code")
		return
	}
	bal, err := h.Ledger.GrantPromo(r.Context(), userID, code, credits)
	switch {
	case errors.Is(err, ledger.ErrPromoRedeemed):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		h.Logger.Error("redeem promo", "user_id", userID, "code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, bal)
	}
}

// GET /api/v1/credits/usage?since=RFC3339 (default: last 30 days)
func (h *CreditHandler) Usage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	since := time.Now().Add(-defaultUsageWindow)
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = t
	}
	sum, err := h.Ledger.UsageSummary(r.Context(), userID, since)
	if err != nil {
		h.Logger.Error("usage summary", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/models"
)

// UsageReader reports a user's ledger usage since a point in time.
type UsageReader interface {
	UsageSummary(ctx context.Context, userID uuid.UUID, since time.Time) (*models.UsageSummary, error)
}

// now is replaced in tests.
var now = time.Now

// DailyScanQuota caps billed scans per user per UTC day. Refunded scans do
// not count. A limit of zero or less disables the check.
func DailyScanQuota(usage UsageReader, limit int, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserFromCtx(r.Context())
			if userID == uuid.Nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			t := now().UTC()
			midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			sum, err := usage.UsageSummary(r.Context(), userID, midnight)
			if err != nil {
				log.Error("daily quota check failed", "user_id", userID, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to check daily quota")
				return
			}
			if billed := sum.ScansCharged - sum.ScansRefunded; billed >= limit {
				writeError(w, http.StatusTooManyRequests, fmt.Sprintf("daily scan limit %d reached", limit))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

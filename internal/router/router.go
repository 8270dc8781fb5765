package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/blogspy/backend/internal/auth"
	"github.com/blogspy/backend/internal/handlers"
	"github.com/blogspy/backend/internal/metrics"
	"github.com/blogspy/backend/internal/middleware"
)

// Handlers groups the HTTP handlers served under /api/v1.
type Handlers struct {
	Auth    *auth.Handler
	Scans   *handlers.ScanHandler
	Credits *handlers.CreditHandler
	Items   *handlers.TrackedItemHandler
}

type Options struct {
	Tokens middleware.TokenValidator
	Usage  middleware.UsageReader
	// DailyScanLimit applies to both scan routes; 0 disables it.
	DailyScanLimit int
	// Ready reports backing-store health for /healthz. Nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
}

// New returns an http.Handler that serves the API under /api/v1 plus
// /healthz and /metrics, instrumented with request metrics.
func New(h Handlers, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	mux := http.NewServeMux()
	base := "/api/v1"

	authed := middleware.BearerAuth(opts.Tokens)
	quota := middleware.DailyScanQuota(opts.Usage, opts.DailyScanLimit, opts.Logger)
	protected := func(f http.HandlerFunc) http.Handler { return authed(f) }
	billed := func(f http.HandlerFunc) http.Handler { return authed(quota(f)) }

	mux.HandleFunc("POST "+base+"/auth/register", h.Auth.Register)
	mux.HandleFunc("POST "+base+"/auth/login", h.Auth.Login)

	mux.Handle("POST "+base+"/scans", billed(h.Scans.CreateScan))
	mux.Handle("POST "+base+"/tracked-items/{id}/scan", billed(h.Scans.ScanTrackedItem))

	mux.Handle("GET "+base+"/tracked-items", protected(h.Items.List))
	mux.Handle("POST "+base+"/tracked-items", protected(h.Items.Create))
	mux.Handle("GET "+base+"/tracked-items/{id}", protected(h.Items.Get))
	mux.Handle("DELETE "+base+"/tracked-items/{id}", protected(h.Items.Delete))

	mux.HandleFunc("GET "+base+"/credits/packages", h.Credits.ListPackages)
	mux.Handle("GET "+base+"/credits/balance", protected(h.Credits.GetBalance))
	mux.Handle("GET "+base+"/credits/transactions", protected(h.Credits.ListTransactions))
	mux.Handle("GET "+base+"/credits/usage", protected(h.Credits.Usage))
	mux.Handle("POST "+base+"/credits/purchase", protected(h.Credits.Purchase))
	mux.Handle("POST "+base+"/credits/promo", protected(h.Credits.RedeemPromo))

	mux.HandleFunc("GET /healthz", healthz(opts.Ready, opts.Logger))
	mux.Handle("GET /metrics", metrics.Handler())

	return metrics.InstrumentHandler(mux)
}

func healthz(ready func(context.Context) error, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				log.Warn("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

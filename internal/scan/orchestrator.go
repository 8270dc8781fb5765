// Package scan runs one brand visibility scan end to end: cache check,
// credit reservation, concurrent provider fan-out, virtual signals,
// scoring, and the refund-on-total-failure policy.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/ledger"
	"github.com/blogspy/backend/internal/metrics"
	"github.com/blogspy/backend/internal/models"
	"github.com/blogspy/backend/internal/providers"
	"github.com/blogspy/backend/internal/signals"
)

const (
	DefaultCost            = 1
	DefaultProviderTimeout = 25 * time.Second
)

var (
	ErrInvalidInput      = errors.New("invalid scan input")
	ErrTotalFailure      = errors.New("all providers failed")
	ErrLedgerUnavailable = errors.New("credit ledger unavailable")
	// ErrRefundFailed means the user was charged for a scan that produced
	// nothing and the compensating refund did not go through.
	ErrRefundFailed = errors.New("refund failed")
)

// Scan states, logged at debug level.
const (
	stateValidating  = "validating"
	stateCacheCheck  = "cache_check"
	stateReserving   = "reserving"
	stateFetching    = "fetching"
	stateAggregating = "aggregating"
	stateCommitted   = "committed"
	stateRefunding   = "refunding"
)

// Ledger is the subset of the credit ledger a scan needs.
type Ledger interface {
	ReserveAndCharge(ctx context.Context, userID uuid.UUID, amount int, reason, ref string, meta map[string]any) (*models.CreditBalance, error)
	Refund(ctx context.Context, userID uuid.UUID, amount int, reason, ref string, meta map[string]any) (*models.CreditBalance, error)
}

// ResultCache is the tracked-item result cache.
type ResultCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.FullScanResult, bool, error)
	Put(ctx context.Context, id uuid.UUID, r *models.FullScanResult) error
}

// Request is one scan request. TrackedItemID enables caching; ad-hoc
// queries never hit the cache. A nil CrawlerPolicy means all bots allowed.
type Request struct {
	UserID        uuid.UUID
	Query         string
	Brand         models.Brand
	TrackedItemID *uuid.UUID
	CrawlerPolicy *models.CrawlerPolicy
}

// Response is what the caller sees for every outcome, including failures.
type Response struct {
	Success          bool                   `json:"success"`
	Result           *models.FullScanResult `json:"result,omitempty"`
	Cached           bool                   `json:"cached"`
	CreditsCharged   int                    `json:"credits_charged"`
	CreditsRemaining *int                   `json:"credits_remaining,omitempty"`
	Error            string                 `json:"error,omitempty"`
	PartialResults   bool                   `json:"partial_results"`
}

// Config tunes the orchestrator.
type Config struct {
	Cost            int
	ProviderTimeout time.Duration
}

// Orchestrator holds the adapter set chosen at start-up. It does not know
// whether the adapters are live or fixtures.
type Orchestrator struct {
	adapters []providers.Adapter
	ledger   Ledger
	cache    ResultCache
	cost     int
	timeout  time.Duration
	log      *slog.Logger

	now   func() time.Time
	newID func() uuid.UUID
}

// NewOrchestrator wires the scan pipeline. cache may be nil.
func NewOrchestrator(adapters []providers.Adapter, l Ledger, c ResultCache, cfg Config, log *slog.Logger) *Orchestrator {
	if cfg.Cost <= 0 {
		cfg.Cost = DefaultCost
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		adapters: adapters,
		ledger:   l,
		cache:    c,
		cost:     cfg.Cost,
		timeout:  cfg.ProviderTimeout,
		log:      log,
		now:      time.Now,
		newID:    uuid.New,
	}
}

// Cost is the credit price of one uncached scan.
func (o *Orchestrator) Cost() int { return o.cost }

// RunScan executes the scan. The returned Response is non-nil for every
// outcome except ErrInvalidInput, so callers can render it alongside the error.
func (o *Orchestrator) RunScan(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	scanID := o.newID()
	log := o.log.With("scan_id", scanID, "user_id", req.UserID)

	log.Debug("scan state", "state", stateValidating)
	if err := validate(&req); err != nil {
		metrics.RecordScan("invalid", 0)
		return nil, err
	}

	if req.TrackedItemID != nil && o.cache != nil {
		log.Debug("scan state", "state", stateCacheCheck, "tracked_item_id", *req.TrackedItemID)
		cached, ok, err := o.cache.Get(ctx, *req.TrackedItemID)
		switch {
		case err != nil:
			log.Warn("cache read failed, scanning", "error", err)
		case ok:
			metrics.RecordScan("cached", 0)
			return &Response{
				Success:        true,
				Result:         cached,
				Cached:         true,
				PartialResults: cached.ErrorCount > 0,
			}, nil
		}
	}

	log.Debug("scan state", "state", stateReserving, "cost", o.cost)
	ref := scanID.String()
	meta := map[string]any{"query": req.Query, "brand": req.Brand.Name}
	if req.TrackedItemID != nil {
		meta["tracked_item_id"] = req.TrackedItemID.String()
	}
	bal, err := o.ledger.ReserveAndCharge(ctx, req.UserID, o.cost, "visibility scan", ref, meta)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			metrics.RecordScan("insufficient_credits", 0)
			return &Response{Error: ledger.ErrInsufficientCredits.Error()}, err
		}
		log.Error("credit reservation failed", "error", err)
		metrics.RecordScan("ledger_error", 0)
		return &Response{Error: "credit ledger unavailable"}, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}

	// Past this point the scan runs to completion or refund even if the
	// caller goes away.
	work := context.WithoutCancel(ctx)

	log.Debug("scan state", "state", stateFetching, "providers", len(o.adapters))
	results := o.fetchAll(work, req.Query, req.Brand)

	if allFailed(results) {
		return o.refund(work, log, req, scanID, start)
	}

	log.Debug("scan state", "state", stateAggregating)
	policy := models.AllowAllCrawlers
	if req.CrawlerPolicy != nil {
		policy = *req.CrawlerPolicy
	}
	virtual := signals.Compute(results, policy)
	full := signals.Aggregate(scanID, req.Query, req.Brand, results, virtual, o.now().UTC())

	log.Debug("scan state", "state", stateCommitted,
		"overall_score", full.OverallScore, "visible", full.VisiblePlatforms, "errors", full.ErrorCount)
	if req.TrackedItemID != nil && o.cache != nil {
		if err := o.cache.Put(work, *req.TrackedItemID, full); err != nil {
			log.Warn("cache write failed", "tracked_item_id", *req.TrackedItemID, "error", err)
		}
	}

	outcome := "committed"
	if full.ErrorCount > 0 {
		outcome = "partial"
	}
	metrics.RecordScan(outcome, time.Since(start))
	remaining := bal.Available
	return &Response{
		Success:          true,
		Result:           full,
		CreditsCharged:   o.cost,
		CreditsRemaining: &remaining,
		PartialResults:   full.ErrorCount > 0,
	}, nil
}

func (o *Orchestrator) refund(ctx context.Context, log *slog.Logger, req Request, scanID uuid.UUID, start time.Time) (*Response, error) {
	log.Debug("scan state", "state", stateRefunding)
	bal, err := o.ledger.Refund(ctx, req.UserID, o.cost, "scan refund: all providers failed", scanID.String(),
		map[string]any{"query": req.Query, "brand": req.Brand.Name})
	if err != nil && !errors.Is(err, ledger.ErrAlreadyRefunded) {
		log.Error("refund after total failure failed",
			"amount", o.cost, "error", err, "reconciliation_required", true)
		metrics.RecordRefundFailure()
		metrics.RecordScan("refund_failed", time.Since(start))
		return &Response{
			CreditsCharged: o.cost,
			Error:          "all providers failed and the refund could not be completed; support has been notified",
		}, fmt.Errorf("%w: %w", ErrRefundFailed, err)
	}

	log.Warn("all providers failed, credits refunded", "amount", o.cost)
	metrics.RecordScan("total_failure", time.Since(start))
	resp := &Response{Error: fmt.Sprintf("all providers failed; %s refunded", plural(o.cost, "credit"))}
	if bal != nil {
		remaining := bal.Available
		resp.CreditsRemaining = &remaining
	}
	return resp, ErrTotalFailure
}

// fetchAll calls every adapter concurrently and waits for all of them.
// Each call gets its own timeout; a panic becomes that provider's error.
func (o *Orchestrator) fetchAll(ctx context.Context, query string, brand models.Brand) []models.ProviderResult {
	results := make([]models.ProviderResult, len(o.adapters))
	var wg sync.WaitGroup
	for i, a := range o.adapters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = o.fetchOne(ctx, a, query, brand)
		}()
	}
	wg.Wait()
	return results
}

// fetchOne returns once the adapter answers or its timeout elapses, whichever
// comes first. An adapter that ignores ctx is abandoned, not waited on.
func (o *Orchestrator) fetchOne(ctx context.Context, a providers.Adapter, query string, brand models.Brand) (res models.ProviderResult) {
	id := a.ID()
	start := time.Now()
	defer func() {
		status := res.Status
		if res.Failed() {
			status = "error"
		}
		metrics.RecordProvider(string(id), status, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan models.ProviderResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("provider adapter panicked", "provider", id, "panic", r)
				done <- models.ErrorResult(id, "internal error")
			}
		}()
		done <- a.Fetch(ctx, query, brand)
	}()

	select {
	case res = <-done:
	case <-ctx.Done():
		o.log.Warn("provider adapter ignored its deadline", "provider", id, "timeout", o.timeout)
		return models.ErrorResult(id, providers.ErrMsgTimeout)
	}

	res.Provider = id
	if res.Error != "" || res.Status == "" {
		res.Status = models.StatusHidden
	}
	return res
}

func allFailed(results []models.ProviderResult) bool {
	for _, r := range results {
		if !r.Failed() {
			return false
		}
	}
	return true
}

func validate(req *Request) error {
	req.Query = strings.TrimSpace(req.Query)
	req.Brand.Name = strings.TrimSpace(req.Brand.Name)
	req.Brand.Domain = strings.TrimSpace(req.Brand.Domain)
	switch {
	case req.UserID == uuid.Nil:
		return fmt.Errorf("%w: user is required", ErrInvalidInput)
	case req.Query == "":
		return fmt.Errorf("%w: query is required", ErrInvalidInput)
	case req.Brand.Name == "" && req.Brand.Domain == "":
		return fmt.Errorf("%w: brand name or domain is required", ErrInvalidInput)
	}
	return nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

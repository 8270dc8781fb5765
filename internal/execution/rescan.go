// Package execution runs background scan work on River: a periodic sweep that
// finds stale auto-rescan items and a worker that rescans one item per job.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/blogspy/backend/internal/ledger"
	"github.com/blogspy/backend/internal/metrics"
	"github.com/blogspy/backend/internal/models"
	"github.com/blogspy/backend/internal/scan"
	"github.com/blogspy/backend/internal/tracker"
)

const (
	rescanTimeout    = 2 * time.Minute
	defaultBatchSize = 500
)

type RescanArgs struct {
	TrackedItemID uuid.UUID `json:"tracked_item_id"`
	UserID        uuid.UUID `json:"user_id"`
}

func (RescanArgs) Kind() string { return "rescan_tracked_item" }

// InsertOpts keeps at most one pending rescan per item in any ten minute window.
func (RescanArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 3,
		UniqueOpts:  river.UniqueOpts{ByArgs: true, ByPeriod: 10 * time.Minute},
	}
}

type EnqueueRescansArgs struct{}

func (EnqueueRescansArgs) Kind() string { return "enqueue_rescans" }

// Scanner is the slice of the scan orchestrator the worker needs.
type Scanner interface {
	RunScan(ctx context.Context, req scan.Request) (*scan.Response, error)
}

// Items is the slice of the tracker service the workers need.
type Items interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*models.TrackedItem, error)
	DueForRescan(ctx context.Context, staleBefore time.Time, limit int) ([]*models.TrackedItem, error)
	MarkScanned(ctx context.Context, id uuid.UUID, at time.Time) error
}

// InsertRescansFunc enqueues rescan jobs. The default inserts through the
// River client carried by the job context.
type InsertRescansFunc func(ctx context.Context, args []RescanArgs) error

// RescanWorker refreshes one tracked item. Billing follows the interactive
// path: a fresh cache entry costs nothing, a total failure is refunded.
type RescanWorker struct {
	river.WorkerDefaults[RescanArgs]
	scanner Scanner
	items   Items
	log     *slog.Logger
}

func NewRescanWorker(s Scanner, items Items, log *slog.Logger) *RescanWorker {
	if log == nil {
		log = slog.Default()
	}
	return &RescanWorker{scanner: s, items: items, log: log}
}

func (w *RescanWorker) Timeout(*river.Job[RescanArgs]) time.Duration { return rescanTimeout }

func (w *RescanWorker) Work(ctx context.Context, job *river.Job[RescanArgs]) error {
	args := job.Args
	log := w.log.With("tracked_item_id", args.TrackedItemID, "user_id", args.UserID)

	item, err := w.items.Get(ctx, args.UserID, args.TrackedItemID)
	if errors.Is(err, tracker.ErrNotFound) {
		log.Info("tracked item gone, skipping rescan")
		metrics.RecordRescan("skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load tracked item: %w", err)
	}
	if !item.AutoRescan {
		metrics.RecordRescan("skipped")
		return nil
	}

	resp, err := w.scanner.RunScan(ctx, scan.Request{
		UserID:        item.UserID,
		Query:         item.Query,
		Brand:         item.Brand,
		TrackedItemID: &item.ID,
	})
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrInsufficientCredits):
		log.Warn("rescan skipped: insufficient credits")
		metrics.RecordRescan("insufficient_credits")
		return nil
	case errors.Is(err, scan.ErrTotalFailure):
		log.Warn("rescan failed on every provider, credits refunded")
		metrics.RecordRescan("failed")
		return nil
	case errors.Is(err, scan.ErrRefundFailed):
		// Retrying would charge again while the last charge is unreconciled.
		log.Error("rescan refund failed", "error", err, "reconciliation_required", true)
		metrics.RecordRescan("failed")
		return river.JobCancel(err)
	case errors.Is(err, scan.ErrInvalidInput):
		log.Error("tracked item cannot be scanned", "error", err)
		metrics.RecordRescan("failed")
		return river.JobCancel(err)
	default:
		metrics.RecordRescan("error")
		return fmt.Errorf("rescan: %w", err)
	}

	result := "scanned"
	if resp.Cached {
		result = "cached"
	}
	metrics.RecordRescan(result)
	if resp.Result == nil {
		return nil
	}
	if err := w.items.MarkScanned(ctx, item.ID, resp.Result.Timestamp); err != nil {
		log.Warn("mark tracked item scanned", "error", err)
	}
	log.Info("tracked item rescanned", "cached", resp.Cached, "overall_score", resp.Result.OverallScore)
	return nil
}

// EnqueueWorker runs on the periodic schedule and fans stale items out into
// individual rescan jobs.
type EnqueueWorker struct {
	river.WorkerDefaults[EnqueueRescansArgs]
	items      Items
	insert     InsertRescansFunc
	staleAfter time.Duration
	batch      int
	log        *slog.Logger
	now        func() time.Time
}

// NewEnqueueWorker builds the sweep. Items last scanned more than staleAfter
// ago are due; insert may be nil to use the job's own River client.
func NewEnqueueWorker(items Items, insert InsertRescansFunc, staleAfter time.Duration, log *slog.Logger) *EnqueueWorker {
	if insert == nil {
		insert = insertFromJobClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &EnqueueWorker{
		items:      items,
		insert:     insert,
		staleAfter: staleAfter,
		batch:      defaultBatchSize,
		log:        log,
		now:        time.Now,
	}
}

func (w *EnqueueWorker) Work(ctx context.Context, _ *river.Job[EnqueueRescansArgs]) error {
	due, err := w.items.DueForRescan(ctx, w.now().Add(-w.staleAfter), w.batch)
	if err != nil {
		return fmt.Errorf("list items due for rescan: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	args := make([]RescanArgs, len(due))
	for i, it := range due {
		args[i] = RescanArgs{TrackedItemID: it.ID, UserID: it.UserID}
	}
	if err := w.insert(ctx, args); err != nil {
		return fmt.Errorf("enqueue rescans: %w", err)
	}
	w.log.Info("rescans enqueued", "count", len(args))
	return nil
}

func insertFromJobClient(ctx context.Context, args []RescanArgs) error {
	client, err := river.ClientFromContextSafely[pgx.Tx](ctx)
	if err != nil {
		return err
	}
	params := make([]river.InsertManyParams, len(args))
	for i, a := range args {
		params[i] = river.InsertManyParams{Args: a}
	}
	_, err = client.InsertMany(ctx, params)
	return err
}

// PeriodicJobs schedules the sweep every interval, starting at boot.
func PeriodicJobs(interval time.Duration) []*river.PeriodicJob {
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) { return EnqueueRescansArgs{}, nil },
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}

// Register adds both workers to workers.
func Register(workers *river.Workers, s Scanner, items Items, staleAfter time.Duration, log *slog.Logger) {
	river.AddWorker(workers, NewRescanWorker(s, items, log))
	river.AddWorker(workers, NewEnqueueWorker(items, nil, staleAfter, log))
}

package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/viralforge/donor-ledger/internal/application"
)

type Reconciler interface {
	ReconcileAll(ctx context.Context) (application.ReconcileSummary, error)
}

// ReconcileWorker periodically rebuilds campaign aggregates from donor rows.
// It is the repair path for stores that run without transactions.
type ReconcileWorker struct {
	logger     *slog.Logger
	reconciler Reconciler
	interval   time.Duration
}

func NewReconcileWorker(logger *slog.Logger, reconciler Reconciler, interval time.Duration) *ReconcileWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileWorker{logger: logger, reconciler: reconciler, interval: interval}
}

func (w *ReconcileWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ReconcileWorker) runOnce(ctx context.Context) {
	started := time.Now()
	summary, err := w.reconciler.ReconcileAll(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.ErrorContext(ctx, "reconcile pass failed",
			"module", "events.reconcile_worker",
			"layer", "adapter",
			"operation", "reconcile_all",
			"outcome", "failure",
			"checked", summary.Checked,
			"repaired", summary.Repaired,
			"failed", summary.Failed,
			"error", err,
		)
		return
	}
	w.logger.InfoContext(ctx, "reconcile pass finished",
		"module", "events.reconcile_worker",
		"layer", "adapter",
		"operation", "reconcile_all",
		"outcome", "success",
		"checked", summary.Checked,
		"repaired", summary.Repaired,
		"duration_ms", time.Since(started).Milliseconds(),
	)
}

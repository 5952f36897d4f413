// Package worker runs the periodic background jobs: pushing locally queued
// entries to the backend and taking database backups.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/nutrisync/internal/types"
)

// Syncer pushes locally queued entries to the backend.
type Syncer interface {
	Sync(ctx context.Context) (types.SyncResult, error)
}

// SyncWorker periodically syncs every registered Syncer. A failing syncer
// does not stop the others.
type SyncWorker struct {
	syncers  []Syncer
	interval time.Duration
}

// NewSyncWorker creates a worker that syncs the given syncers on interval.
func NewSyncWorker(interval time.Duration, syncers ...Syncer) *SyncWorker {
	return &SyncWorker{syncers: syncers, interval: interval}
}

// Run starts the worker loop. Syncs immediately on start, then on each
// interval. Respects context cancellation for graceful shutdown.
func (w *SyncWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "sync",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "sync",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce syncs every syncer once and returns the per-syncer results.
func (w *SyncWorker) RunOnce(ctx context.Context) []types.SyncResult {
	results := make([]types.SyncResult, 0, len(w.syncers))
	var pushed, failed int
	for _, s := range w.syncers {
		if ctx.Err() != nil {
			return results // Graceful shutdown, don't log summary
		}
		res, err := s.Sync(ctx)
		results = append(results, res)
		pushed += res.Pushed
		failed += res.Failed
		if err != nil && ctx.Err() == nil {
			slog.Warn("sync incomplete",
				"component", "worker",
				"worker", "sync",
				"action", "sync_failed",
				"kind", res.Kind,
				"pushed", res.Pushed,
				"failed", res.Failed,
				"error", err,
			)
		}
	}

	// Log summary only if something moved
	if pushed > 0 || failed > 0 {
		slog.Info("sync cycle completed",
			"component", "worker",
			"worker", "sync",
			"action", "cycle_complete",
			"pushed", pushed,
			"failed", failed,
		)
	}
	return results
}

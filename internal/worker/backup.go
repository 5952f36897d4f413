package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/nutrisync/internal/snapshot"
)

// BackupWorker periodically backs up the local database and uploads it.
type BackupWorker struct {
	source   snapshot.Source
	uploader snapshot.Uploader
	userID   string
	dir      string
	interval time.Duration
}

// NewBackupWorker creates a backup worker. Backups are written to dir.
func NewBackupWorker(source snapshot.Source, uploader snapshot.Uploader, userID, dir string, interval time.Duration) *BackupWorker {
	return &BackupWorker{
		source:   source,
		uploader: uploader,
		userID:   userID,
		dir:      dir,
		interval: interval,
	}
}

// Run starts the worker loop. The first backup is taken after one interval.
func (w *BackupWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "backup",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "backup",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.backup(ctx)
		}
	}
}

func (w *BackupWorker) backup(ctx context.Context) {
	res, err := snapshot.Run(ctx, w.source, w.uploader, w.userID, w.dir)
	if err != nil {
		// Graceful shutdown, don't log as error
		if ctx.Err() != nil {
			return
		}
		slog.Warn("backup failed",
			"component", "worker",
			"worker", "backup",
			"action", "backup_failed",
			"error", err,
		)
		return
	}
	slog.Info("backup completed",
		"component", "worker",
		"worker", "backup",
		"action", "backup_complete",
		"path", res.Path,
		"uploaded", res.Uploaded,
	)
}

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Source writes a consistent copy of the local database to path.
type Source interface {
	Backup(ctx context.Context, path string) error
}

// Result describes a finished backup.
type Result struct {
	Path     string `json:"path"`
	Key      string `json:"key,omitempty"`
	Uploaded bool   `json:"uploaded"`
	Size     int64  `json:"size_bytes"`
}

// Run writes a backup of src into dir and uploads it for userID. An
// unconfigured uploader leaves the backup on disk and is not an error; a
// failed upload is returned with the local result intact.
func Run(ctx context.Context, src Source, up Uploader, userID, dir string) (*Result, error) {
	path := filepath.Join(dir, "nutrisync-backup.db")
	if err := src.Backup(ctx, path); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}

	res := &Result{Path: path}
	if info, err := os.Stat(path); err == nil {
		res.Size = info.Size()
	}

	if up == nil {
		return res, nil
	}
	if err := up.Upload(ctx, userID, path); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return res, nil
		}
		slog.Warn("backup upload failed",
			"component", "snapshot",
			"action", "backup_upload_failed",
			"user_id", userID,
			"error", err,
		)
		return res, err
	}
	res.Key = objectKey(userID)
	res.Uploaded = true
	slog.Info("backup uploaded",
		"component", "snapshot",
		"action", "backup_uploaded",
		"user_id", userID,
		"key", res.Key,
		"size_bytes", res.Size,
	)
	return res, nil
}

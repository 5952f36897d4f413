package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hyperengineering/nutrisync/internal/types"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the local durable store backed by SQLite.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) ready() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// GetBlob decodes the blob stored under key into v.
func (s *SQLiteStore) GetBlob(ctx context.Context, key string, v any) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	var (
		version int
		value   string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT schema_version, value FROM blobs WHERE key = ?", key,
	).Scan(&version, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read blob %s: %w", key, err)
	}

	if version > CurrentSchemaVersion {
		return false, fmt.Errorf("blob %s version %d: %w", key, version, ErrSchemaVersion)
	}

	if err := json.Unmarshal([]byte(value), v); err != nil {
		return false, fmt.Errorf("decode blob %s: %w", key, err)
	}
	return true, nil
}

// PutBlob stores v as JSON under key, replacing any previous value.
func (s *SQLiteStore) PutBlob(ctx context.Context, key string, v any) error {
	if err := s.ready(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode blob %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, schema_version, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			schema_version = excluded.schema_version,
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, CurrentSchemaVersion, string(data), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}

// DeleteBlob removes the blob under key. Missing keys are not an error.
func (s *SQLiteStore) DeleteBlob(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM blobs WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// Enqueue appends an entry to the local queue for kind.
func (s *SQLiteStore) Enqueue(ctx context.Context, kind Kind, tempID, date string, payload any) error {
	if err := s.ready(); err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("enqueue %q: %w", kind, ErrUnknownKind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode pending %s: %w", kind, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_entries (temp_id, kind, entry_date, payload, queued_at)
		VALUES (?, ?, ?, ?, ?)
	`, tempID, string(kind), date, string(data), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return nil
}

// Pending returns every queued entry for kind, oldest first.
func (s *SQLiteStore) Pending(ctx context.Context, kind Kind) ([]PendingEntry, error) {
	return s.queryPending(ctx, `
		SELECT temp_id, kind, entry_date, payload, queued_at, attempts, COALESCE(last_error, '')
		FROM pending_entries
		WHERE kind = ?
		ORDER BY queued_at, temp_id
	`, string(kind))
}

// PendingForDate returns queued entries for kind whose date starts with datePrefix.
func (s *SQLiteStore) PendingForDate(ctx context.Context, kind Kind, datePrefix string) ([]PendingEntry, error) {
	return s.queryPending(ctx, `
		SELECT temp_id, kind, entry_date, payload, queued_at, attempts, COALESCE(last_error, '')
		FROM pending_entries
		WHERE kind = ? AND substr(entry_date, 1, ?) = ?
		ORDER BY queued_at, temp_id
	`, string(kind), len(datePrefix), datePrefix)
}

func (s *SQLiteStore) queryPending(ctx context.Context, query string, args ...any) ([]PendingEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	var out []PendingEntry
	for rows.Next() {
		var (
			e        PendingEntry
			kind     string
			payload  string
			queuedAt string
		)
		if err := rows.Scan(&e.TempID, &kind, &e.Date, &payload, &queuedAt, &e.Attempts, &e.LastError); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		e.Kind = Kind(kind)
		e.Payload = json.RawMessage(payload)
		e.QueuedAt, _ = time.Parse(timeLayout, queuedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Remove deletes one queued entry. Returns ErrNotFound if it is not queued.
func (s *SQLiteStore) Remove(ctx context.Context, kind Kind, tempID string) error {
	if err := s.ready(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM pending_entries WHERE kind = ? AND temp_id = ?", string(kind), tempID)
	if err != nil {
		return fmt.Errorf("remove pending %s: %w", tempID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed records a failed sync attempt for one queued entry.
func (s *SQLiteStore) MarkFailed(ctx context.Context, kind Kind, tempID string, cause error) error {
	if err := s.ready(); err != nil {
		return err
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_entries
		SET attempts = attempts + 1, last_error = ?
		WHERE kind = ? AND temp_id = ?
	`, msg, string(kind), tempID)
	if err != nil {
		return fmt.Errorf("mark pending %s failed: %w", tempID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordSync stores the time of the last successful sync for kind.
func (s *SQLiteStore) RecordSync(ctx context.Context, kind Kind, at time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, "last_sync_"+string(kind), at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record sync %s: %w", kind, err)
	}
	return nil
}

// Stats returns pending queue counts and the most recent sync time.
func (s *SQLiteStore) Stats(ctx context.Context) (*types.StoreStats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	stats := &types.StoreStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'meal' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'water' THEN 1 ELSE 0 END), 0)
		FROM pending_entries
	`).Scan(&stats.PendingMeals, &stats.PendingWater)
	if err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}

	var last sql.NullString
	err = s.db.QueryRowContext(ctx,
		"SELECT MAX(value) FROM sync_meta WHERE key LIKE 'last_sync_%'").Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("read last sync: %w", err)
	}
	if last.Valid {
		if t, err := time.Parse(timeLayout, last.String); err == nil {
			stats.LastSync = &t
		}
	}

	return stats, nil
}

// Backup writes a consistent copy of the database to path.
// An existing file at path is replaced.
func (s *SQLiteStore) Backup(ctx context.Context, path string) error {
	if err := s.ready(); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create backup directory: %w", err)
		}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove previous backup: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}
	return nil
}

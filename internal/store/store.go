package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hyperengineering/nutrisync/internal/types"
)

// Blob keys for persisted state.
const (
	KeyGoals           = "nutrition-goals"
	KeyGoalsHistory    = "goals-history"
	KeyUserProfile     = "user-profile"
	KeyUserPreferences = "user-preferences"
)

// CurrentSchemaVersion is written with every blob.
const CurrentSchemaVersion = 1

// Kind identifies a local pending queue.
type Kind string

const (
	KindMeal  Kind = "meal"
	KindWater Kind = "water"
)

// Valid reports whether k names a known queue.
func (k Kind) Valid() bool {
	return k == KindMeal || k == KindWater
}

// PendingEntry is an entry that has not yet been accepted by the backend.
type PendingEntry struct {
	TempID    string          `json:"temp_id"`
	Kind      Kind            `json:"kind"`
	Date      string          `json:"date"`
	Payload   json.RawMessage `json:"payload"`
	QueuedAt  time.Time       `json:"queued_at"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
}

// BlobStore persists keyed JSON blobs.
type BlobStore interface {
	// GetBlob decodes the blob stored under key into v. It returns false when
	// no blob exists.
	GetBlob(ctx context.Context, key string, v any) (bool, error)
	PutBlob(ctx context.Context, key string, v any) error
	DeleteBlob(ctx context.Context, key string) error
}

// Queue is the durable local-only queue of entries awaiting sync.
type Queue interface {
	Enqueue(ctx context.Context, kind Kind, tempID, date string, payload any) error
	Pending(ctx context.Context, kind Kind) ([]PendingEntry, error)
	PendingForDate(ctx context.Context, kind Kind, datePrefix string) ([]PendingEntry, error)
	Remove(ctx context.Context, kind Kind, tempID string) error
	MarkFailed(ctx context.Context, kind Kind, tempID string, cause error) error
	RecordSync(ctx context.Context, kind Kind, at time.Time) error
}

// Store is the full local storage contract.
type Store interface {
	BlobStore
	Queue
	Stats(ctx context.Context) (*types.StoreStats, error)
	Backup(ctx context.Context, path string) error
	Close() error
}

// Package stream keeps a day's entries in sync between the backend and the
// local pending queue.
//
// Entries created while the backend is unreachable are queued locally and
// shown immediately as pending. SyncLocalToRemote pushes them later and
// swaps each one for its confirmed counterpart.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/nutrisync/internal/events"
	"github.com/hyperengineering/nutrisync/internal/observable"
	"github.com/hyperengineering/nutrisync/internal/store"
	"github.com/hyperengineering/nutrisync/internal/types"
)

// TempIDPrefix starts every temporary id assigned to a pending entry.
const TempIDPrefix = "local-"

var (
	// ErrSyncIncomplete is returned when some queued entries could not be pushed.
	ErrSyncIncomplete = errors.New("sync incomplete")
	// ErrNotFound is returned when an id matches no entry of the stream.
	ErrNotFound = errors.New("entry not found")
)

// Remote is the backend side of a stream.
type Remote[T any] interface {
	Create(ctx context.Context, data T) (types.Entry[T], error)
	Update(ctx context.Context, id string, data T) (types.Entry[T], error)
	Delete(ctx context.Context, id string) error
	ListToday(ctx context.Context) ([]types.Entry[T], error)
}

// Config binds a Stream to its collaborators.
type Config[T any] struct {
	// Name is used in logs and as the SyncResult kind.
	Name   string
	Kind   store.Kind
	Remote Remote[T]
	Queue  store.Queue
	Bus    events.Emitter
	// DateOf returns the YYYY-MM-DD day an entry belongs to.
	DateOf func(T) string
	// ContentKey identifies duplicates that have no server id. Nil disables
	// content matching.
	ContentKey func(T) string
	// Now defaults to time.Now.
	Now func() time.Time
	// RefreshTimeout bounds background refreshes. Defaults to 30s.
	RefreshTimeout time.Duration
}

// Stream is the observable list of one kind of entry.
type Stream[T any] struct {
	cfg     Config[T]
	entries *observable.Value[[]types.Entry[T]]

	// mu serializes read-modify-write sequences that span the network.
	mu sync.Mutex
	// refreshMu keeps each refresh's fetch and publish together so an older
	// list never replaces a newer one.
	refreshMu sync.Mutex

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// New creates an empty Stream.
func New[T any](cfg Config[T]) *Stream[T] {
	if cfg.Bus == nil {
		cfg.Bus = events.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RefreshTimeout == 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream[T]{
		cfg:      cfg,
		entries:  observable.New(cfg.Name, []types.Entry[T]{}),
		bgCtx:    ctx,
		bgCancel: cancel,
	}
}

// All returns a copy of the current entries.
func (s *Stream[T]) All() []types.Entry[T] {
	return cloneEntries(s.entries.Get())
}

// Subscribe calls fn with the current entries and on every change.
func (s *Stream[T]) Subscribe(fn func([]types.Entry[T])) (unsubscribe func()) {
	return s.entries.Subscribe(func(list []types.Entry[T]) { fn(cloneEntries(list)) })
}

// Pending returns the entries that exist only locally.
func (s *Stream[T]) Pending() []types.Entry[T] {
	var out []types.Entry[T]
	for _, e := range s.entries.Get() {
		if e.IsPending() {
			out = append(out, e)
		}
	}
	return out
}

// Create sends data to the backend. When that fails the entry is queued
// locally and returned as pending with a nil error; an error is returned
// only when the entry could not be saved anywhere.
func (s *Stream[T]) Create(ctx context.Context, data T) (types.Entry[T], error) {
	entry, err := s.cfg.Remote.Create(ctx, data)
	if err == nil {
		s.entries.Update(func(list []types.Entry[T]) []types.Entry[T] {
			return s.upsert(list, entry)
		})
		s.refreshAsync()
		return entry, nil
	}

	slog.Warn("remote create failed, queueing locally",
		"component", "stream",
		"stream", s.cfg.Name,
		"error", err,
	)
	return s.createLocal(ctx, data)
}

func (s *Stream[T]) createLocal(ctx context.Context, data T) (types.Entry[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := types.PendingLocal(NewTempID(), data)
	if err := s.cfg.Queue.Enqueue(ctx, s.cfg.Kind, entry.TempID, s.cfg.DateOf(data), data); err != nil {
		return types.Entry[T]{}, fmt.Errorf("queue %s locally: %w", s.cfg.Name, err)
	}
	s.entries.Update(func(list []types.Entry[T]) []types.Entry[T] {
		return s.upsert(list, entry)
	})
	return entry, nil
}

// Update replaces the entry with the given id. A pending entry is rewritten
// in the local queue without contacting the backend.
func (s *Stream[T]) Update(ctx context.Context, id string, data T) (types.Entry[T], error) {
	if IsTempID(id) {
		return s.updateLocal(ctx, id, data)
	}

	entry, err := s.cfg.Remote.Update(ctx, id, data)
	if err == nil {
		s.entries.Update(func(list []types.Entry[T]) []types.Entry[T] {
			return s.upsert(list, entry)
		})
	}
	s.cfg.Bus.Emit(types.DashboardEvent{Type: types.EventRefreshData})
	s.refreshAsync()
	if err != nil {
		return types.Entry[T]{}, fmt.Errorf("update %s %s: %w", s.cfg.Name, id, err)
	}
	return entry, nil
}

func (s *Stream[T]) updateLocal(ctx context.Context, tempID string, data T) (types.Entry[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cfg.Queue.Remove(ctx, s.cfg.Kind, tempID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Entry[T]{}, fmt.Errorf("update %s %s: %w", s.cfg.Name, tempID, ErrNotFound)
		}
		return types.Entry[T]{}, fmt.Errorf("update %s %s: %w", s.cfg.Name, tempID, err)
	}
	if err := s.cfg.Queue.Enqueue(ctx, s.cfg.Kind, tempID, s.cfg.DateOf(data), data); err != nil {
		return types.Entry[T]{}, fmt.Errorf("update %s %s: %w", s.cfg.Name, tempID, err)
	}

	entry := types.PendingLocal(tempID, data)
	s.entries.Update(func(list []types.Entry[T]) []types.Entry[T] {
		return replaceByTempID(list, tempID, entry)
	})
	s.cfg.Bus.Emit(types.DashboardEvent{Type: types.EventRefreshData})
	return entry, nil
}

// Delete removes the entry with the given id. A pending entry is dropped
// from the local queue without contacting the backend.
func (s *Stream[T]) Delete(ctx context.Context, id string) error {
	if IsTempID(id) {
		return s.deleteLocal(ctx, id)
	}

	err := s.cfg.Remote.Delete(ctx, id)
	if err == nil {
		s.entries.Update(func(list []types.Entry[T]) []types.Entry[T] {
			return removeWhere(list, func(e types.Entry[T]) bool {
				return e.State == types.StateConfirmed && e.ID == id
			})
		})
	}
	s.cfg.Bus.Emit(types.DashboardEvent{Type: types.EventRefreshData})
	s.refreshAsync()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", s.cfg.Name, id, err)
	}
	return nil
}

func (s *Stream[T]) deleteLocal(ctx context.Context, tempID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cfg.Queue.Remove(ctx, s.cfg.Kind, tempID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("delete %s %s: %w", s.cfg.Name, tempID, ErrNotFound)
		}
		return fmt.Errorf("delete %s %s: %w", s.cfg.Name, tempID, err)
	}
	s.entries.Update(func(list []types.Entry[T]) []types.Entry[T] {
		return removeWhere(list, func(e types.Entry[T]) bool {
			return e.IsPending() && e.TempID == tempID
		})
	})
	s.cfg.Bus.Emit(types.DashboardEvent{Type: types.EventRefreshData})
	return nil
}

// SyncLocalToRemote pushes every queued entry independently. Entries the
// backend accepts leave the queue and replace their pending counterpart in
// the stream; the rest stay queued with their attempt counter raised. The
// returned error wraps ErrSyncIncomplete when at least one entry failed.
func (s *Stream[T]) SyncLocalToRemote(ctx context.Context) ([]types.Entry[T], error) {
	synced, _, err := s.sync(ctx)
	return synced, err
}

// Sync runs SyncLocalToRemote and summarizes the pass.
func (s *Stream[T]) Sync(ctx context.Context) (types.SyncResult, error) {
	start := time.Now()
	synced, failed, err := s.sync(ctx)
	return types.SyncResult{
		Kind:     s.cfg.Name,
		Pushed:   len(synced),
		Failed:   failed,
		Duration: time.Since(start),
	}, err
}

func (s *Stream[T]) sync(ctx context.Context) ([]types.Entry[T], int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.cfg.Queue.Pending(ctx, s.cfg.Kind)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s queue: %w", s.cfg.Name, err)
	}
	if len(pending) == 0 {
		return nil, 0, nil
	}

	var (
		synced   []types.Entry[T]
		failures []error
	)
	for _, p := range pending {
		if ctx.Err() != nil {
			failures = append(failures, ctx.Err())
			break
		}

		var data T
		if err := json.Unmarshal(p.Payload, &data); err != nil {
			failures = append(failures, fmt.Errorf("decode %s: %w", p.TempID, err))
			s.markFailed(ctx, p.TempID, err)
			continue
		}

		entry, err := s.cfg.Remote.Create(ctx, data)
		if err != nil {
			failures = append(failures, fmt.Errorf("push %s: %w", p.TempID, err))
			s.markFailed(ctx, p.TempID, err)
			continue
		}

		if err := s.cfg.Queue.Remove(ctx, s.cfg.Kind, p.TempID); err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Error("synced entry left in queue",
				"component", "stream",
				"stream", s.cfg.Name,
				"temp_id", p.TempID,
				"error", err,
			)
		}

		tempID := p.TempID
		onToday := s.cfg.DateOf(entry.Data) == s.cfg.Now().Format(types.DateLayout)
		s.entries.Update(func(list []types.Entry[T]) []types.Entry[T] {
			if !onToday {
				return removeWhere(list, func(e types.Entry[T]) bool {
					return e.IsPending() && e.TempID == tempID
				})
			}
			return replaceByTempID(list, tempID, entry)
		})
		synced = append(synced, entry)
	}

	if len(synced) > 0 {
		if err := s.cfg.Queue.RecordSync(ctx, s.cfg.Kind, s.cfg.Now()); err != nil {
			slog.Warn("record sync failed",
				"component", "stream",
				"stream", s.cfg.Name,
				"error", err,
			)
		}
		s.cfg.Bus.Emit(types.DashboardEvent{Type: types.EventRefreshData})
		s.refreshAsync()
	}

	slog.Info("local entries synced",
		"component", "stream",
		"stream", s.cfg.Name,
		"pushed", len(synced),
		"failed", len(failures),
	)

	if len(failures) > 0 {
		return synced, len(failures), fmt.Errorf("%w: %d of %d %s entries: %w",
			ErrSyncIncomplete, len(failures), len(pending), s.cfg.Name, errors.Join(failures...))
	}
	return synced, 0, nil
}

func (s *Stream[T]) markFailed(ctx context.Context, tempID string, cause error) {
	if err := s.cfg.Queue.MarkFailed(ctx, s.cfg.Kind, tempID, cause); err != nil {
		slog.Warn("mark failed",
			"component", "stream",
			"stream", s.cfg.Name,
			"temp_id", tempID,
			"error", err,
		)
	}
}

// RefreshToday replaces the entries with today's list from the backend,
// followed by today's entries still waiting in the local queue. When the
// backend cannot be reached the queued entries are shown alone and the
// backend error is returned.
func (s *Stream[T]) RefreshToday(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	today := s.cfg.Now().Format(types.DateLayout)

	remote, remoteErr := s.cfg.Remote.ListToday(ctx)
	local, err := s.localForDate(ctx, today)
	if err != nil {
		slog.Warn("read local queue failed",
			"component", "stream",
			"stream", s.cfg.Name,
			"error", err,
		)
	}

	next := make([]types.Entry[T], 0, len(remote)+len(local))
	if remoteErr == nil {
		for _, e := range remote {
			next = s.upsert(next, e)
		}
	}
	for _, e := range local {
		next = s.upsert(next, e)
	}
	s.entries.Set(next)

	if remoteErr != nil {
		slog.Warn("refresh fell back to local queue",
			"component", "stream",
			"stream", s.cfg.Name,
			"pending", len(local),
			"error", remoteErr,
		)
		return fmt.Errorf("refresh %s: %w", s.cfg.Name, remoteErr)
	}
	return nil
}

func (s *Stream[T]) localForDate(ctx context.Context, datePrefix string) ([]types.Entry[T], error) {
	pending, err := s.cfg.Queue.PendingForDate(ctx, s.cfg.Kind, datePrefix)
	if err != nil {
		return nil, err
	}
	out := make([]types.Entry[T], 0, len(pending))
	for _, p := range pending {
		var data T
		if err := json.Unmarshal(p.Payload, &data); err != nil {
			slog.Warn("skipping undecodable queued entry",
				"component", "stream",
				"stream", s.cfg.Name,
				"temp_id", p.TempID,
				"error", err,
			)
			continue
		}
		out = append(out, types.PendingLocal(p.TempID, data))
	}
	return out, nil
}

// refreshAsync runs RefreshToday in the background. Failures are logged.
func (s *Stream[T]) refreshAsync() {
	if s.bgCtx.Err() != nil {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(s.bgCtx, s.cfg.RefreshTimeout)
		defer cancel()
		if err := s.RefreshToday(ctx); err != nil {
			slog.Debug("background refresh failed",
				"component", "stream",
				"stream", s.cfg.Name,
				"error", err,
			)
		}
	}()
}

// Wait blocks until every background refresh has finished.
func (s *Stream[T]) Wait() {
	s.bg.Wait()
}

// Close cancels background refreshes and waits for them to exit.
func (s *Stream[T]) Close() {
	s.bgCancel()
	s.bg.Wait()
}

// upsert inserts incoming into list. A confirmed entry replaces the
// confirmed entry with the same server id. Otherwise a pending entry with
// the same temp id or content key is replaced. Anything else is appended.
func (s *Stream[T]) upsert(list []types.Entry[T], incoming types.Entry[T]) []types.Entry[T] {
	out := cloneEntries(list)

	if incoming.State == types.StateConfirmed {
		for i, e := range out {
			if e.State == types.StateConfirmed && e.ID == incoming.ID {
				out[i] = incoming
				return out
			}
		}
	}

	for i, e := range out {
		if !e.IsPending() {
			continue
		}
		if incoming.IsPending() && e.TempID == incoming.TempID {
			out[i] = incoming
			return out
		}
		if s.sameContent(e.Data, incoming.Data) {
			out[i] = incoming
			return out
		}
	}

	return append(out, incoming)
}

func (s *Stream[T]) sameContent(a, b T) bool {
	if s.cfg.ContentKey == nil {
		return false
	}
	return s.cfg.ContentKey(a) == s.cfg.ContentKey(b)
}

// NewTempID returns a fresh temporary id for a pending entry.
func NewTempID() string {
	return TempIDPrefix + ulid.Make().String()
}

// IsTempID reports whether id was assigned locally.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

func replaceByTempID[T any](list []types.Entry[T], tempID string, entry types.Entry[T]) []types.Entry[T] {
	out := cloneEntries(list)
	for i, e := range out {
		if e.IsPending() && e.TempID == tempID {
			out[i] = entry
			return out
		}
	}
	if entry.State == types.StateConfirmed {
		for i, e := range out {
			if e.State == types.StateConfirmed && e.ID == entry.ID {
				out[i] = entry
				return out
			}
		}
	}
	return append(out, entry)
}

func removeWhere[T any](list []types.Entry[T], match func(types.Entry[T]) bool) []types.Entry[T] {
	out := make([]types.Entry[T], 0, len(list))
	for _, e := range list {
		if !match(e) {
			out = append(out, e)
		}
	}
	return out
}

func cloneEntries[T any](list []types.Entry[T]) []types.Entry[T] {
	out := make([]types.Entry[T], len(list))
	copy(out, list)
	return out
}

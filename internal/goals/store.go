// Package goals holds the shared nutrition goals and their change history.
package goals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hyperengineering/nutrisync/internal/observable"
	"github.com/hyperengineering/nutrisync/internal/store"
	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/internal/validation"
)

// HistoryLimit caps the number of stored goal changes.
const HistoryLimit = 20

var (
	// ErrSuggestionUnavailable means no remote suggestion could be obtained.
	ErrSuggestionUnavailable = errors.New("goal suggestion unavailable")
	// ErrUnsafeGoals is returned when suggested goals fall outside the safety limits.
	ErrUnsafeGoals = errors.New("goals outside safety limits")
	// ErrNoRemote is returned when no remote profile is configured.
	ErrNoRemote = errors.New("remote profile not configured")
)

// RemoteProfile is the backend profile the goals are mirrored to.
type RemoteProfile interface {
	PushGoals(ctx context.Context, g types.NutritionGoals) error
	FetchGoals(ctx context.Context) (types.NutritionGoals, error)
}

// Advisor produces goal suggestions and receives feedback on them.
type Advisor interface {
	SuggestGoals(ctx context.Context, profile types.UserProfile, current types.DaySummary) (*types.GoalSuggestion, error)
	SubmitGoalFeedback(ctx context.Context, g types.NutritionGoals, accepted bool, feedback string) error
}

// Store owns the current goals. Mutations are serialized; subscribers are
// notified synchronously before a mutation returns and must not mutate the
// Store from inside the handler.
type Store struct {
	mu      sync.Mutex
	goals   *observable.Value[types.NutritionGoals]
	history *observable.Value[[]types.GoalUpdateRecord]

	blobs   store.BlobStore
	remote  RemoteProfile
	advisor Advisor
	now     func() time.Time
}

// NewStore creates a Store holding the default goals. remote and advisor may be nil.
func NewStore(blobs store.BlobStore, remote RemoteProfile, advisor Advisor) *Store {
	return &Store{
		goals:   observable.New("goals", types.DefaultGoals()),
		history: observable.New("goals-history", []types.GoalUpdateRecord{}),
		blobs:   blobs,
		remote:  remote,
		advisor: advisor,
		now:     time.Now,
	}
}

// Current returns the latest goals.
func (s *Store) Current() types.NutritionGoals {
	return s.goals.Get()
}

// Subscribe calls fn with the current goals and on every change.
func (s *Store) Subscribe(fn func(types.NutritionGoals)) (unsubscribe func()) {
	return s.goals.Subscribe(fn)
}

// SubscribeHistory calls fn with the history and on every change.
func (s *Store) SubscribeHistory(fn func([]types.GoalUpdateRecord)) (unsubscribe func()) {
	return s.history.Subscribe(func(h []types.GoalUpdateRecord) { fn(cloneHistory(h)) })
}

// History returns the goal changes, newest first.
func (s *Store) History() []types.GoalUpdateRecord {
	return cloneHistory(s.history.Get())
}

// Update merges patch over the current goals as a user change.
func (s *Store) Update(ctx context.Context, patch types.GoalsPatch, reason string) (types.NutritionGoals, error) {
	return s.Apply(ctx, patch, reason, types.SourceUser)
}

// Apply merges patch over the current goals, records the change with the
// given source, persists the result and notifies subscribers.
func (s *Store) Apply(ctx context.Context, patch types.GoalsPatch, reason string, source types.GoalSource) (types.NutritionGoals, error) {
	if errs := validation.ValidateGoalsPatch(patch); len(errs) > 0 {
		return s.Current(), validation.AsError(errs)
	}
	if reason == "" {
		reason = "Manual update"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.goals.Get()
	next := patch.Apply(prev)
	record := types.GoalUpdateRecord{
		Timestamp:     s.now().UTC(),
		PreviousGoals: prev,
		NewGoals:      next,
		Reason:        reason,
		Source:        source,
	}

	s.goals.Set(next)
	history := s.history.Update(func(h []types.GoalUpdateRecord) []types.GoalUpdateRecord {
		return prepend(h, record)
	})

	s.persist(ctx, next, history)

	slog.Info("goals updated",
		"component", "goals",
		"source", source,
		"reason", reason,
	)
	return next, nil
}

// ResetToDefaults restores the default goals as a user change.
func (s *Store) ResetToDefaults(ctx context.Context) types.NutritionGoals {
	g, _ := s.Apply(ctx, types.PatchFromGoals(types.DefaultGoals()), "Reset to defaults", types.SourceUser)
	return g
}

// ClearHistory removes every recorded goal change.
func (s *Store) ClearHistory(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Set([]types.GoalUpdateRecord{})
	if s.blobs == nil {
		return
	}
	if err := s.blobs.PutBlob(ctx, store.KeyGoalsHistory, []types.GoalUpdateRecord{}); err != nil {
		slog.Warn("goals history persist failed",
			"component", "goals",
			"error", err,
		)
	}
}

// CalculateFromProfile derives goals from profile without changing the Store.
func (s *Store) CalculateFromProfile(profile types.UserProfile) types.NutritionGoals {
	return Calculate(profile)
}

// RequestRemoteSuggestion asks the advisor for a goal suggestion. Any failure
// is reported as ErrSuggestionUnavailable.
func (s *Store) RequestRemoteSuggestion(ctx context.Context, profile types.UserProfile, current types.DaySummary) (*types.GoalSuggestion, error) {
	if s.advisor == nil {
		return nil, ErrSuggestionUnavailable
	}

	suggestion, err := s.advisor.SuggestGoals(ctx, profile, current)
	if err != nil {
		slog.Warn("goal suggestion failed",
			"component", "goals",
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrSuggestionUnavailable, err)
	}
	if suggestion == nil {
		return nil, ErrSuggestionUnavailable
	}
	if errs := validation.ValidateGoalsPatch(types.PatchFromGoals(suggestion.Goals)); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrSuggestionUnavailable, validation.AsError(errs))
	}
	return suggestion, nil
}

// ApplyRemoteSuggestion reports the decision to the advisor and, when
// accepted, applies g as an AI change and pushes it to the remote profile.
// A failed push is logged and the local change is kept.
func (s *Store) ApplyRemoteSuggestion(ctx context.Context, g types.NutritionGoals, accepted bool, feedback string) (types.NutritionGoals, error) {
	if s.advisor != nil {
		if err := s.advisor.SubmitGoalFeedback(ctx, g, accepted, feedback); err != nil {
			slog.Warn("goal feedback not delivered",
				"component", "goals",
				"accepted", accepted,
				"error", err,
			)
		}
	}

	if !accepted {
		return s.Current(), nil
	}
	if err := ValidateSafetyLimits(g); err != nil {
		return s.Current(), err
	}

	next, err := s.Apply(ctx, types.PatchFromGoals(g), "AI Agent recommendation", types.SourceAIAgent)
	if err != nil {
		return next, err
	}
	s.pushRemote(ctx, next)
	return next, nil
}

// PushRemote sends the current goals to the remote profile.
func (s *Store) PushRemote(ctx context.Context) error {
	if s.remote == nil {
		return ErrNoRemote
	}
	return s.remote.PushGoals(ctx, s.Current())
}

func (s *Store) pushRemote(ctx context.Context, g types.NutritionGoals) {
	if s.remote == nil {
		return
	}
	if err := s.remote.PushGoals(ctx, g); err != nil {
		slog.Warn("goals remote push failed",
			"component", "goals",
			"error", err,
		)
	}
}

// LoadFromStorage restores goals and history persisted by an earlier run.
// Missing blobs leave the defaults in place.
func (s *Store) LoadFromStorage(ctx context.Context) error {
	if s.blobs == nil {
		return nil
	}

	var g types.NutritionGoals
	foundGoals, err := s.blobs.GetBlob(ctx, store.KeyGoals, &g)
	if err != nil {
		return fmt.Errorf("load goals: %w", err)
	}
	if foundGoals {
		if errs := validation.ValidateGoalsPatch(types.PatchFromGoals(g)); len(errs) > 0 {
			return fmt.Errorf("load goals: %w", validation.AsError(errs))
		}
	}

	var h []types.GoalUpdateRecord
	foundHistory, err := s.blobs.GetBlob(ctx, store.KeyGoalsHistory, &h)
	if err != nil {
		return fmt.Errorf("load goals history: %w", err)
	}
	if len(h) > HistoryLimit {
		h = h[:HistoryLimit]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if foundGoals {
		s.goals.Set(g)
	}
	if foundHistory {
		s.history.Set(cloneHistory(h))
	}
	return nil
}

// LoadFromRemoteProfile replaces the goals with those stored on the remote
// profile and persists them locally.
func (s *Store) LoadFromRemoteProfile(ctx context.Context) (types.NutritionGoals, error) {
	if s.remote == nil {
		return s.Current(), ErrNoRemote
	}
	g, err := s.remote.FetchGoals(ctx)
	if err != nil {
		return s.Current(), fmt.Errorf("load remote goals: %w", err)
	}
	if errs := validation.ValidateGoalsPatch(types.PatchFromGoals(g)); len(errs) > 0 {
		return s.Current(), validation.AsError(errs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals.Set(g)
	s.persist(ctx, g, s.history.Get())
	return g, nil
}

func (s *Store) persist(ctx context.Context, g types.NutritionGoals, h []types.GoalUpdateRecord) {
	if s.blobs == nil {
		return
	}
	if err := s.blobs.PutBlob(ctx, store.KeyGoals, g); err != nil {
		slog.Warn("goals persist failed",
			"component", "goals",
			"error", err,
		)
	}
	if err := s.blobs.PutBlob(ctx, store.KeyGoalsHistory, h); err != nil {
		slog.Warn("goals history persist failed",
			"component", "goals",
			"error", err,
		)
	}
}

// prepend returns a new slice with r first, keeping at most HistoryLimit records.
func prepend(h []types.GoalUpdateRecord, r types.GoalUpdateRecord) []types.GoalUpdateRecord {
	n := len(h) + 1
	if n > HistoryLimit {
		n = HistoryLimit
	}
	out := make([]types.GoalUpdateRecord, 0, n)
	out = append(out, r)
	out = append(out, h[:n-1]...)
	return out
}

func cloneHistory(h []types.GoalUpdateRecord) []types.GoalUpdateRecord {
	out := make([]types.GoalUpdateRecord, len(h))
	copy(out, h)
	return out
}

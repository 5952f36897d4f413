// Package profile holds the user's health and dietary profile.
//
// The profile is persisted as two fragments: the basic body metrics and
// daily targets, and the dietary preferences. Update always writes both.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hyperengineering/nutrisync/internal/events"
	"github.com/hyperengineering/nutrisync/internal/observable"
	"github.com/hyperengineering/nutrisync/internal/store"
	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/internal/validation"
)

// Targets applied to a diabetic profile.
const (
	DiabeticCarbLimit    = 130.0
	DiabeticCalorieGoal  = 1800.0
	DiabeticWaterGoal    = 2500.0
	diabeticUpdateReason = "Diabetic profile update"
)

// ErrNoRemote is returned when no remote profile is configured.
var ErrNoRemote = errors.New("remote profile not configured")

// GoalsApplier receives the goal changes implied by a profile change.
type GoalsApplier interface {
	Apply(ctx context.Context, patch types.GoalsPatch, reason string, source types.GoalSource) (types.NutritionGoals, error)
}

// RemoteProfile reads the profile stored on the backend.
type RemoteProfile interface {
	FetchProfile(ctx context.Context) (types.ProfilePatch, error)
}

// basicFragment is the persisted form of the body metrics and targets.
type basicFragment struct {
	Age              int                 `json:"age,omitempty"`
	Weight           float64             `json:"weight,omitempty"`
	Height           float64             `json:"height,omitempty"`
	Gender           types.Gender        `json:"gender,omitempty"`
	ActivityLevel    types.ActivityLevel `json:"activity_level,omitempty"`
	DailyCalorieGoal float64             `json:"daily_calorie_goal,omitempty"`
	DailyWaterGoal   float64             `json:"daily_water_goal,omitempty"`
	DailyCarbLimit   float64             `json:"daily_carb_limit,omitempty"`
	// Older writers stored the whole profile here; these are read on load
	// and then overridden by the preferences fragment.
	HealthConditions    []string `json:"health_conditions,omitempty"`
	DietaryRestrictions []string `json:"dietary_restrictions,omitempty"`
	Goals               []string `json:"goals,omitempty"`
}

// preferencesFragment is the persisted form of the dietary preferences.
type preferencesFragment struct {
	HealthConditions    []string `json:"health_conditions"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
	Goals               []string `json:"goals"`
}

// Options wires a Store to its collaborators. All fields are optional.
type Options struct {
	Blobs  store.BlobStore
	Goals  GoalsApplier
	Bus    events.Emitter
	Remote RemoteProfile
}

// Store owns the single authoritative profile.
type Store struct {
	mu      sync.Mutex
	profile *observable.Value[types.UserProfile]

	blobs  store.BlobStore
	goals  GoalsApplier
	bus    events.Emitter
	remote RemoteProfile
}

// NewStore creates a Store holding an empty profile.
func NewStore(opts Options) *Store {
	if opts.Bus == nil {
		opts.Bus = events.Nop{}
	}
	return &Store{
		profile: observable.New("profile", emptyProfile()),
		blobs:   opts.Blobs,
		goals:   opts.Goals,
		bus:     opts.Bus,
		remote:  opts.Remote,
	}
}

func emptyProfile() types.UserProfile {
	return types.UserProfile{
		HealthConditions:    []string{},
		DietaryRestrictions: []string{},
		Goals:               []string{},
	}
}

// Get returns a copy of the profile.
func (s *Store) Get() types.UserProfile {
	return s.profile.Get().Clone()
}

// IsDiabetic reports whether the profile carries a diabetes marker.
func (s *Store) IsDiabetic() bool {
	return s.profile.Get().IsDiabetic()
}

// Subscribe calls fn with the profile and on every change.
func (s *Store) Subscribe(fn func(types.UserProfile)) (unsubscribe func()) {
	return s.profile.Subscribe(func(p types.UserProfile) { fn(p.Clone()) })
}

// Update merges patch into the profile and persists both fragments. When
// the result is diabetic the daily targets are fixed and pushed into the
// goals, followed by an UPDATE_GOALS event.
func (s *Store) Update(ctx context.Context, patch types.ProfilePatch) (types.UserProfile, error) {
	if errs := validation.ValidateProfilePatch(patch); len(errs) > 0 {
		return s.Get(), validation.AsError(errs)
	}

	s.mu.Lock()
	next := patch.Apply(s.profile.Get())
	diabetic := next.IsDiabetic()
	if diabetic {
		next.DailyCarbLimit = DiabeticCarbLimit
		if next.DailyCalorieGoal <= 0 {
			next.DailyCalorieGoal = DiabeticCalorieGoal
		}
	}
	s.profile.Set(next)
	s.persist(ctx, next)
	s.mu.Unlock()

	slog.Info("profile updated",
		"component", "profile",
		"diabetic", diabetic,
	)

	if diabetic {
		s.applyDiabeticGoals(ctx, next)
	}
	return next.Clone(), nil
}

func (s *Store) applyDiabeticGoals(ctx context.Context, p types.UserProfile) {
	if s.goals == nil {
		return
	}
	calories := p.DailyCalorieGoal
	water := DiabeticWaterGoal
	carbs := DiabeticCarbLimit
	g, err := s.goals.Apply(ctx, types.GoalsPatch{
		Calories: &calories,
		Water:    &water,
		Carbs:    &carbs,
	}, diabeticUpdateReason, types.SourceProfileUpdate)
	if err != nil {
		slog.Error("diabetic goals not applied",
			"component", "profile",
			"error", err,
		)
		return
	}
	s.bus.Emit(types.DashboardEvent{Type: types.EventUpdateGoals, Data: g})
}

// LoadFromStorage restores the profile: the basic fragment first, then
// the preferences fragment, which wins for the fields both carry. Loading
// never changes the goals.
func (s *Store) LoadFromStorage(ctx context.Context) error {
	if s.blobs == nil {
		return nil
	}

	var basic basicFragment
	foundBasic, err := s.blobs.GetBlob(ctx, store.KeyUserProfile, &basic)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	var prefs preferencesFragment
	foundPrefs, err := s.blobs.GetBlob(ctx, store.KeyUserPreferences, &prefs)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	if !foundBasic && !foundPrefs {
		return nil
	}

	p := emptyProfile()
	if foundBasic {
		p = types.UserProfile{
			HealthConditions:    basic.HealthConditions,
			DietaryRestrictions: basic.DietaryRestrictions,
			Goals:               basic.Goals,
			Age:                 basic.Age,
			Weight:              basic.Weight,
			Height:              basic.Height,
			Gender:              basic.Gender,
			ActivityLevel:       basic.ActivityLevel,
			DailyCalorieGoal:    basic.DailyCalorieGoal,
			DailyWaterGoal:      basic.DailyWaterGoal,
			DailyCarbLimit:      basic.DailyCarbLimit,
		}.Clone()
	}
	if foundPrefs {
		if prefs.HealthConditions != nil {
			p.HealthConditions = prefs.HealthConditions
		}
		if prefs.DietaryRestrictions != nil {
			p.DietaryRestrictions = prefs.DietaryRestrictions
		}
		if prefs.Goals != nil {
			p.Goals = prefs.Goals
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.Set(p.Clone())
	return nil
}

// LoadFromRemote merges the basic fields stored on the backend profile
// into the local profile and persists the result.
func (s *Store) LoadFromRemote(ctx context.Context) (types.UserProfile, error) {
	if s.remote == nil {
		return s.Get(), ErrNoRemote
	}
	patch, err := s.remote.FetchProfile(ctx)
	if err != nil {
		return s.Get(), fmt.Errorf("load remote profile: %w", err)
	}
	if errs := validation.ValidateProfilePatch(patch); len(errs) > 0 {
		return s.Get(), validation.AsError(errs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := patch.Apply(s.profile.Get())
	s.profile.Set(next)
	s.persist(ctx, next)
	return next.Clone(), nil
}

func (s *Store) persist(ctx context.Context, p types.UserProfile) {
	if s.blobs == nil {
		return
	}
	basic := basicFragment{
		Age:              p.Age,
		Weight:           p.Weight,
		Height:           p.Height,
		Gender:           p.Gender,
		ActivityLevel:    p.ActivityLevel,
		DailyCalorieGoal: p.DailyCalorieGoal,
		DailyWaterGoal:   p.DailyWaterGoal,
		DailyCarbLimit:   p.DailyCarbLimit,
	}
	prefs := preferencesFragment{
		HealthConditions:    p.HealthConditions,
		DietaryRestrictions: p.DietaryRestrictions,
		Goals:               p.Goals,
	}
	if err := s.blobs.PutBlob(ctx, store.KeyUserProfile, basic); err != nil {
		slog.Warn("profile persist failed",
			"component", "profile",
			"fragment", store.KeyUserProfile,
			"error", err,
		)
	}
	if err := s.blobs.PutBlob(ctx, store.KeyUserPreferences, prefs); err != nil {
		slog.Warn("profile persist failed",
			"component", "profile",
			"fragment", store.KeyUserPreferences,
			"error", err,
		)
	}
}

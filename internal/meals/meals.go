// Package meals is the meal stream: validated meal logging on top of the
// generic entry stream.
package meals

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hyperengineering/nutrisync/internal/events"
	"github.com/hyperengineering/nutrisync/internal/store"
	"github.com/hyperengineering/nutrisync/internal/stream"
	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/internal/validation"
)

// Stream holds the day's meals.
type Stream struct {
	s   *stream.Stream[types.Meal]
	bus events.Emitter
	now func() time.Time
}

// Options configures a Stream.
type Options struct {
	Bus events.Emitter
	// Now defaults to time.Now.
	Now func() time.Time
}

// New creates a meal stream backed by remote and the local queue q.
func New(remote stream.Remote[types.Meal], q store.Queue, opts Options) *Stream {
	if opts.Bus == nil {
		opts.Bus = events.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Stream{
		s: stream.New(stream.Config[types.Meal]{
			Name:       "meals",
			Kind:       store.KindMeal,
			Remote:     remote,
			Queue:      q,
			Bus:        opts.Bus,
			DateOf:     func(m types.Meal) string { return m.Date },
			ContentKey: ContentKey,
			Now:        opts.Now,
		}),
		bus: opts.Bus,
		now: opts.Now,
	}
}

// ContentKey identifies a meal that has no server id. Names compare
// exactly.
func ContentKey(m types.Meal) string {
	return m.Name + "|" + m.Date + "|" + strconv.FormatFloat(m.Calories, 'f', -1, 64)
}

// Normalize fills the date, meal type and creation time when they are unset.
func (ms *Stream) Normalize(m types.Meal) types.Meal {
	now := ms.now()
	m.Name = strings.TrimSpace(m.Name)
	if m.Date == "" {
		m.Date = now.Format(types.DateLayout)
	}
	m.MealType = types.ParseMealType(string(m.MealType))
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now.UTC()
	}
	return m
}

// Create validates and logs a meal, then emits ADD_MEAL. When the backend
// is unreachable the meal is kept locally as pending.
func (ms *Stream) Create(ctx context.Context, m types.Meal) (types.Entry[types.Meal], error) {
	m = ms.Normalize(m)
	if errs := validation.ValidateMeal(m); len(errs) > 0 {
		return types.Entry[types.Meal]{}, validation.AsError(errs)
	}

	entry, err := ms.s.Create(ctx, m)
	if err != nil {
		return entry, err
	}
	ms.bus.Emit(types.DashboardEvent{Type: types.EventAddMeal, Data: entry})
	return entry, nil
}

// Update validates m and replaces the meal with the given id.
func (ms *Stream) Update(ctx context.Context, id string, m types.Meal) (types.Entry[types.Meal], error) {
	m = ms.Normalize(m)
	if errs := validation.ValidateMeal(m); len(errs) > 0 {
		return types.Entry[types.Meal]{}, validation.AsError(errs)
	}
	return ms.s.Update(ctx, id, m)
}

// Delete removes the meal with the given id.
func (ms *Stream) Delete(ctx context.Context, id string) error {
	return ms.s.Delete(ctx, id)
}

// All returns the current meals.
func (ms *Stream) All() []types.Entry[types.Meal] {
	return ms.s.All()
}

// Pending returns the meals not yet accepted by the backend.
func (ms *Stream) Pending() []types.Entry[types.Meal] {
	return ms.s.Pending()
}

// Subscribe calls fn with the current meals and on every change.
func (ms *Stream) Subscribe(fn func([]types.Entry[types.Meal])) (unsubscribe func()) {
	return ms.s.Subscribe(fn)
}

// SyncLocalToRemote pushes queued meals to the backend.
func (ms *Stream) SyncLocalToRemote(ctx context.Context) ([]types.Entry[types.Meal], error) {
	return ms.s.SyncLocalToRemote(ctx)
}

// Sync pushes queued meals and summarizes the pass.
func (ms *Stream) Sync(ctx context.Context) (types.SyncResult, error) {
	return ms.s.Sync(ctx)
}

// RefreshToday reloads today's meals.
func (ms *Stream) RefreshToday(ctx context.Context) error {
	return ms.s.RefreshToday(ctx)
}

// Wait blocks until background refreshes finish.
func (ms *Stream) Wait() {
	ms.s.Wait()
}

// Close stops background refreshes.
func (ms *Stream) Close() {
	ms.s.Close()
}

// Totals sums the nutrients of the current meals.
func (ms *Stream) Totals() types.MealTotals {
	return Sum(ms.s.All())
}

// Sum adds up the nutrients of entries.
func Sum(entries []types.Entry[types.Meal]) types.MealTotals {
	var t types.MealTotals
	for _, e := range entries {
		t.Count++
		t.Calories += e.Data.Calories
		t.Protein += e.Data.Protein
		t.Carbs += e.Data.Carbs
		t.Fats += e.Data.Fats
		t.Fiber += e.Data.Fiber
	}
	return t
}

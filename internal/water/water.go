// Package water is the water intake stream.
package water

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/nutrisync/internal/events"
	"github.com/hyperengineering/nutrisync/internal/store"
	"github.com/hyperengineering/nutrisync/internal/stream"
	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/internal/validation"
)

// GlassML is the volume of one glass of water.
const GlassML = 250

// Stream holds the day's water intakes.
type Stream struct {
	s           *stream.Stream[types.WaterIntake]
	bus         events.Emitter
	now         func() time.Time
	maxPerEntry float64
}

// Options configures a Stream.
type Options struct {
	Bus events.Emitter
	// MaxPerEntry caps a single intake in millilitres. Zero uses
	// validation.MaxWaterPerEntry.
	MaxPerEntry float64
	Now         func() time.Time
}

// New creates a water stream backed by remote and the local queue q.
func New(remote stream.Remote[types.WaterIntake], q store.Queue, opts Options) *Stream {
	if opts.Bus == nil {
		opts.Bus = events.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxPerEntry <= 0 {
		opts.MaxPerEntry = validation.MaxWaterPerEntry
	}
	return &Stream{
		s: stream.New(stream.Config[types.WaterIntake]{
			Name:   "water",
			Kind:   store.KindWater,
			Remote: remote,
			Queue:  q,
			Bus:    opts.Bus,
			DateOf: func(w types.WaterIntake) string { return w.Date },
			Now:    opts.Now,
		}),
		bus:         opts.Bus,
		now:         opts.Now,
		maxPerEntry: opts.MaxPerEntry,
	}
}

func (ws *Stream) normalize(w types.WaterIntake) types.WaterIntake {
	now := ws.now()
	if w.Date == "" {
		w.Date = now.Format(types.DateLayout)
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now.UTC()
	}
	return w
}

func (ws *Stream) validate(w types.WaterIntake) error {
	var c validation.Collector
	for _, ve := range validation.ValidateWater(w) {
		c.Add(&ve)
	}
	if w.Amount > ws.maxPerEntry && w.Amount <= validation.MaxWaterPerEntry {
		c.Add(&validation.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("must not exceed %.0f ml per entry", ws.maxPerEntry),
		})
	}
	return c.Err()
}

// Create validates and logs an intake, then emits ADD_WATER.
func (ws *Stream) Create(ctx context.Context, w types.WaterIntake) (types.Entry[types.WaterIntake], error) {
	w = ws.normalize(w)
	if err := ws.validate(w); err != nil {
		return types.Entry[types.WaterIntake]{}, err
	}

	entry, err := ws.s.Create(ctx, w)
	if err != nil {
		return entry, err
	}
	ws.bus.Emit(types.DashboardEvent{Type: types.EventAddWater, Data: entry})
	return entry, nil
}

// AddGlasses logs n glasses of water.
func (ws *Stream) AddGlasses(ctx context.Context, n int) (types.Entry[types.WaterIntake], error) {
	return ws.Create(ctx, types.WaterIntake{Amount: float64(n * GlassML)})
}

// Update validates w and replaces the intake with the given id.
func (ws *Stream) Update(ctx context.Context, id string, w types.WaterIntake) (types.Entry[types.WaterIntake], error) {
	w = ws.normalize(w)
	if err := ws.validate(w); err != nil {
		return types.Entry[types.WaterIntake]{}, err
	}
	return ws.s.Update(ctx, id, w)
}

// Delete removes the intake with the given id.
func (ws *Stream) Delete(ctx context.Context, id string) error {
	return ws.s.Delete(ctx, id)
}

// All returns the current intakes.
func (ws *Stream) All() []types.Entry[types.WaterIntake] {
	return ws.s.All()
}

// Pending returns the intakes not yet accepted by the backend.
func (ws *Stream) Pending() []types.Entry[types.WaterIntake] {
	return ws.s.Pending()
}

// Subscribe calls fn with the current intakes and on every change.
func (ws *Stream) Subscribe(fn func([]types.Entry[types.WaterIntake])) (unsubscribe func()) {
	return ws.s.Subscribe(fn)
}

// SyncLocalToRemote pushes queued intakes to the backend.
func (ws *Stream) SyncLocalToRemote(ctx context.Context) ([]types.Entry[types.WaterIntake], error) {
	return ws.s.SyncLocalToRemote(ctx)
}

// Sync pushes queued intakes and summarizes the pass.
func (ws *Stream) Sync(ctx context.Context) (types.SyncResult, error) {
	return ws.s.Sync(ctx)
}

// RefreshToday reloads today's intakes.
func (ws *Stream) RefreshToday(ctx context.Context) error {
	return ws.s.RefreshToday(ctx)
}

// Wait blocks until background refreshes finish.
func (ws *Stream) Wait() {
	ws.s.Wait()
}

// Close stops background refreshes.
func (ws *Stream) Close() {
	ws.s.Close()
}

// Totals sums the current intakes.
func (ws *Stream) Totals() types.WaterTotals {
	var t types.WaterTotals
	for _, e := range ws.s.All() {
		t.Count++
		t.Total += e.Data.Amount
	}
	return t
}

// Package events provides the dashboard event bus.
//
// Events are fire-and-forget: Emit delivers synchronously to the handlers
// registered at that moment, in registration order. Nothing is queued or
// retried, and an event with no handlers is dropped.
package events

import (
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/hyperengineering/nutrisync/internal/types"
)

// Handler receives dashboard events.
type Handler func(types.DashboardEvent)

// Emitter is the publishing side of the bus.
type Emitter interface {
	Emit(event types.DashboardEvent)
}

// Bus broadcasts dashboard events to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []registration
}

type registration struct {
	id uint64
	fn Handler
}

// Compile-time interface check
var _ Emitter = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// On registers fn and returns the function that removes it. Components must
// call it when they are torn down or the handler stays registered.
func (b *Bus) On(fn Handler) (off func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, registration{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// Emit delivers event to every current handler and returns when all of them
// have run. A panicking handler is logged and skipped.
func (b *Bus) Emit(event types.DashboardEvent) {
	b.mu.RLock()
	handlers := make([]registration, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		slog.Debug("event dropped",
			"component", "events",
			"type", event.Type,
		)
		return
	}

	for _, h := range handlers {
		b.deliver(h, event)
	}
}

// Len returns the number of registered handlers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

func (b *Bus) deliver(h registration, event types.DashboardEvent) {
	defer func() {
		if recovered := recover(); recovered != nil {
			slog.Error("event handler panic recovered",
				"component", "events",
				"type", event.Type,
				"error", recovered,
				"stack", string(debug.Stack()),
			)
		}
	}()
	h.fn(event)
}

// Nop discards every event.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(types.DashboardEvent) {}

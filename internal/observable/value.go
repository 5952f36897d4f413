// Package observable provides a shared value with synchronous subscribers.
//
// A Value holds one current snapshot. Subscribe replays the snapshot to the
// new handler immediately, then delivers every later change in order. Set
// returns only after every subscriber has been called.
package observable

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Value is a concurrency-safe observable value.
//
// Handlers run on the goroutine that called Set. They may read the value
// with Get and unsubscribe themselves, but must not call Set, Update or
// Subscribe on the same Value.
type Value[T any] struct {
	name string

	mu      sync.RWMutex
	current T

	// notifyMu serializes mutations with their notifications so every
	// subscriber observes changes in the same order.
	notifyMu sync.Mutex
	subsMu   sync.Mutex
	nextID   uint64
	subs     []subscriber[T]
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// New returns a Value initialized to initial. The name is used in logs.
func New[T any](name string, initial T) *Value[T] {
	return &Value[T]{name: name, current: initial}
}

// Get returns the current snapshot.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set replaces the current value and notifies subscribers.
func (v *Value[T]) Set(next T) {
	v.Update(func(T) T { return next })
}

// Update computes the next value from the current one under the write lock
// and notifies subscribers with the result. It returns the new value.
func (v *Value[T]) Update(fn func(T) T) T {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.mu.Lock()
	next := fn(v.current)
	v.current = next
	v.mu.Unlock()

	for _, s := range v.snapshotSubs() {
		v.deliver(s, next)
	}
	return next
}

// Subscribe registers fn, calls it with the current snapshot, and returns a
// function that removes the subscription. Calling the returned function more
// than once is safe.
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.subsMu.Lock()
	v.nextID++
	s := subscriber[T]{id: v.nextID, fn: fn}
	v.subs = append(v.subs, s)
	v.subsMu.Unlock()

	v.deliver(s, v.Get())

	var once sync.Once
	return func() {
		once.Do(func() { v.remove(s.id) })
	}
}

// Subscribers returns the number of active subscriptions.
func (v *Value[T]) Subscribers() int {
	v.subsMu.Lock()
	defer v.subsMu.Unlock()
	return len(v.subs)
}

func (v *Value[T]) remove(id uint64) {
	v.subsMu.Lock()
	defer v.subsMu.Unlock()
	for i, s := range v.subs {
		if s.id == id {
			v.subs = append(v.subs[:i:i], v.subs[i+1:]...)
			return
		}
	}
}

func (v *Value[T]) snapshotSubs() []subscriber[T] {
	v.subsMu.Lock()
	defer v.subsMu.Unlock()
	out := make([]subscriber[T], len(v.subs))
	copy(out, v.subs)
	return out
}

func (v *Value[T]) deliver(s subscriber[T], value T) {
	defer func() {
		if recovered := recover(); recovered != nil {
			slog.Error("subscriber panic recovered",
				"component", "observable",
				"value", v.name,
				"error", recovered,
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.fn(value)
}

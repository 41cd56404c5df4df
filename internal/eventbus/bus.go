// Package eventbus implements spec.md §4.8's per-Synchronizer event
// bus: a small synchronous pub/sub that a Synchronizer uses to notify
// subscribers about its own lifecycle, keeping the teacher's
// Bus.Register/Unregister/Dispatch shape (sync.RWMutex-guarded handler
// slice, "log subscriber errors, never propagate them") while dropping
// the teacher's NATS JetStream publish path, which this module has no
// use for.
package eventbus

import (
	"fmt"
	"log/slog"
	"sync"
)

// Bus dispatches Synchronizer lifecycle events to registered handlers.
// One Bus belongs to exactly one Synchronizer.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription
	nextID   uint64
	logger   *slog.Logger
}

type subscription struct {
	id uint64
	h  Handler
}

// New creates an empty event bus. logger defaults to slog.Default()
// when nil.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{handlers: make(map[EventType][]subscription), logger: logger}
}

// Subscription identifies a registered handler for Off.
type Subscription struct {
	eventType EventType
	id        uint64
}

// On registers h to be called for every event of type t, returning a
// Subscription usable with Off. Subscribers are appended in
// registration order and invoked in that order.
func (b *Bus) On(t EventType, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], subscription{id: id, h: h})
	return Subscription{eventType: t, id: id}
}

// Off removes a previously registered subscription. Returns true if it
// was still registered.
func (b *Bus) Off(s Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[s.eventType]
	for i, sub := range subs {
		if sub.id == s.id {
			b.handlers[s.eventType] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// Emit dispatches e to every handler registered for e.Type, invoking
// them synchronously in registration order from the caller's own
// goroutine (spec.md §4.8: "invoked synchronously from the worker after
// the worker's result resolves"). A handler's error is logged and
// otherwise ignored — one misbehaving subscriber never blocks the
// others or the worker.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[e.Type]))
	copy(subs, b.handlers[e.Type])
	logger := b.logger
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := safeInvoke(sub.h, e); err != nil {
			logger.Warn("eventbus: subscriber error", "event", string(e.Type), "err", err)
		}
	}
}

// safeInvoke recovers a panicking handler into an error so that one
// broken subscriber can never bring down the Synchronizer worker.
func safeInvoke(h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventbus: handler panic: %v", r)
		}
	}()
	return h(e)
}

// Len reports how many handlers are registered for t, for tests and
// status reporting.
func (b *Bus) Len(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}

// ABOUTME: Typed event bus with ordered, panic-isolated synchronous delivery
// ABOUTME: Handlers run in registration order; a panicking handler never stops the rest

package eventbus

import (
	"sync"

	"github.com/mauromedda/canvas-history-go/internal/log"
)

// Handler is a callback function for events.
type Handler[T any] func(T)

type subscription[T any] struct {
	id      int
	handler Handler[T]
}

// Bus is a typed event bus that delivers events to registered handlers.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   []subscription[T]
	nextID int
}

// New creates a new event bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers a handler and returns an unsubscribe function.
// Calling the returned function more than once is harmless.
func (b *Bus[T]) Subscribe(handler Handler[T]) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription[T]{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish sends an event to all registered handlers in registration order.
// A handler that panics is logged and skipped.
func (b *Bus[T]) Publish(event T) {
	b.mu.RLock()
	// Snapshot handlers to avoid holding lock during callbacks
	snapshot := make([]Handler[T], len(b.subs))
	for i, s := range b.subs {
		snapshot[i] = s.handler
	}
	b.mu.RUnlock()

	for _, h := range snapshot {
		deliver(h, event)
	}
}

func deliver[T any](h Handler[T], event T) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("eventbus: handler panicked: %v", r)
		}
	}()
	h(event)
}

// Clear removes every handler.
func (b *Bus[T]) Clear() {
	b.mu.Lock()
	b.subs = nil
	b.mu.Unlock()
}

// Count returns the number of registered handlers.
func (b *Bus[T]) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

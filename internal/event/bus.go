package event

import (
	"log"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// Handler is a function that handles an event.
type Handler func(Event)

// subscription represents a registered event handler. A subscription is
// either a synchronous Handler (used by emit, which suspends until every
// handler has run) or a bounded channel (used by tryEmit, which never
// blocks and is meant for best-effort mirrors like UI streaming).
type subscription struct {
	id        string
	eventType string
	handler   Handler
	ch        chan Event
}

// Bus is the fan-out channel described by the coordination core: emit
// delivers synchronously to every handler subscription, while tryEmit
// delivers to channel subscriptions through their own bounded buffer and
// never blocks the caller.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // eventType -> subscriptions
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string][]subscription),
	}
}

// Subscribe registers a synchronous handler for a specific event type.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.generateID()
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
	})
	return id
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe("*", handler)
}

// SubscribeChannel registers a bounded-buffer channel subscription for a
// specific event type. tryEmit delivers to these without blocking; if the
// buffer is full the event is dropped for that subscriber and TryEmit
// reports the overflow. bufferSize is the channel's capacity.
func (b *Bus) SubscribeChannel(eventType string, bufferSize int) (string, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.generateID()
	ch := make(chan Event, bufferSize)
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:        id,
		eventType: eventType,
		ch:        ch,
	})
	return id, ch
}

// Unsubscribe removes a subscription by ID. Returns true if found.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				if sub.ch != nil {
					close(sub.ch)
				}
				b.subscriptions[eventType] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Emit dispatches an event synchronously to every handler subscription,
// suspending until all of them have run. Specific handlers run first,
// followed by wildcard handlers, in registration order within each group.
// A panicking handler is recovered so it cannot block delivery to the rest.
func (b *Bus) Emit(event Event) {
	specific, wildcard := b.snapshot(event.EventType())

	for _, sub := range specific {
		if sub.handler != nil {
			b.safeCall(sub.handler, event)
		}
	}
	for _, sub := range wildcard {
		if sub.handler != nil {
			b.safeCall(sub.handler, event)
		}
	}
}

// TryEmit dispatches an event to every channel subscription without
// blocking. It returns true only if the event was accepted by every
// channel subscriber; a full buffer for any one subscriber makes it
// return false for that emission (the caller treats this as a dropped
// best-effort update, never as a core-path failure).
func (b *Bus) TryEmit(event Event) bool {
	specific, wildcard := b.snapshot(event.EventType())

	accepted := true
	for _, sub := range specific {
		if sub.ch != nil && !trySend(sub.ch, event) {
			accepted = false
		}
	}
	for _, sub := range wildcard {
		if sub.ch != nil && !trySend(sub.ch, event) {
			accepted = false
		}
	}
	return accepted
}

func trySend(ch chan Event, event Event) bool {
	select {
	case ch <- event:
		return true
	default:
		return false
	}
}

func (b *Bus) snapshot(eventType string) (specific, wildcard []subscription) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	specific = make([]subscription, len(b.subscriptions[eventType]))
	copy(specific, b.subscriptions[eventType])

	wildcard = make([]subscription, len(b.subscriptions["*"]))
	copy(wildcard, b.subscriptions["*"])

	return specific, wildcard
}

// safeCall invokes a handler and recovers from any panics, logging the
// stack trace so one misbehaving handler cannot block delivery to others.
func (b *Bus) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: event handler panicked for event %s: %v\n%s",
				event.EventType(), r, debug.Stack())
		}
	}()
	handler(event)
}

// generateID creates a unique subscription ID.
func (b *Bus) generateID() string {
	return uuid.NewString()
}

// Clear removes all subscriptions, closing any channel subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			if sub.ch != nil {
				close(sub.ch)
			}
		}
	}
	b.subscriptions = make(map[string][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}

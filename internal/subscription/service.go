// Package subscription implements the subscription service that sits
// between the event bus and the Agent Tool Surface: it turns the bus's
// undifferentiated fan-out into per-agent pending queues, filtered by
// pattern and self-exclusion, with support for one-shot subscriptions.
package subscription

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/routa-dev/routa/internal/event"
)

// eventTypeOf maps an event.Event to its normative wire string. Event
// variants not named here use their own EventType() value directly,
// which already carries the dotted form bus.go uses internally.
func eventTypeOf(e event.Event) string {
	switch e.(type) {
	case event.AgentCreatedEvent:
		return "agent:created"
	case event.AgentStatusChangedEvent:
		return "agent:status_changed"
	case event.AgentCompletedEvent:
		return "agent:completed"
	case event.MessageReceivedEvent:
		return "agent:message"
	case event.TaskStatusChangedEvent:
		return "task:status_changed"
	case event.TaskDelegatedEvent:
		return "task:delegated"
	default:
		return e.EventType()
	}
}

// DeliveredEvent is one entry in a subscriber's pending queue: the
// normative event type string, the underlying event, and when the
// subscription service accepted it.
type DeliveredEvent struct {
	EventType string
	Event     event.Event
	Delivered time.Time
}

// Subscription is a caller's standing interest in a set of event-type
// patterns, optionally self-excluding and optionally one-shot.
type Subscription struct {
	ID          string
	AgentID     string
	AgentName   string
	EventTypes  []string
	ExcludeSelf bool
	OneShot     bool
	CreatedAt   time.Time
}

// Service maintains subscriptions-by-id and pendingEvents-by-subscriber,
// consuming an event.Bus forever once Start is called.
type Service struct {
	mu            sync.Mutex
	subscriptions map[string]Subscription
	pending       map[string][]DeliveredEvent

	bus      *event.Bus
	busSubID string
}

// NewService creates a Service bound to no bus yet; call Start to begin
// consuming events.
func NewService() *Service {
	return &Service{
		subscriptions: make(map[string]Subscription),
		pending:       make(map[string][]DeliveredEvent),
	}
}

// Start subscribes to every event on bus and begins routing deliveries
// into subscriber pending queues. Calling Start again after Stop rebinds
// to a (possibly different) bus.
func (s *Service) Start(bus *event.Bus) {
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()

	id := bus.SubscribeAll(s.handle)

	s.mu.Lock()
	s.busSubID = id
	s.mu.Unlock()
}

// Stop unsubscribes from the bus. Pending queues and subscriptions are
// preserved; a later Start resumes delivery.
func (s *Service) Stop() {
	s.mu.Lock()
	bus, id := s.bus, s.busSubID
	s.bus, s.busSubID = nil, ""
	s.mu.Unlock()

	if bus != nil && id != "" {
		bus.Unsubscribe(id)
	}
}

// Subscribe registers a standing subscription and returns its id.
func (s *Service) Subscribe(agentID, agentName string, eventTypes []string, excludeSelf, oneShot bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.subscriptions[id] = Subscription{
		ID:          id,
		AgentID:     agentID,
		AgentName:   agentName,
		EventTypes:  eventTypes,
		ExcludeSelf: excludeSelf,
		OneShot:     oneShot,
		CreatedAt:   time.Now(),
	}
	return id
}

// SubscribeToAgentCompletion is the convenience one-shot, self-excluding
// subscription a tool uses to wait for a specific target agent to finish.
// The caller is expected to filter drained events for the target id
// itself, since the subscription is registered on the event-type
// patterns rather than on the target.
func (s *Service) SubscribeToAgentCompletion(caller, target string) string {
	return s.Subscribe(caller, "", []string{"agent:completed", "agent:status_changed"}, true, true)
}

// Unsubscribe removes a subscription. Returns true if it existed.
func (s *Service) Unsubscribe(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[id]; !ok {
		return false
	}
	delete(s.subscriptions, id)
	return true
}

// DrainPendingEvents atomically returns and clears the pending queue for
// agentID.
func (s *Service) DrainPendingEvents(agentID string) []DeliveredEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.pending[agentID]
	delete(s.pending, agentID)
	return events
}

// handle is the bus handler: for the incoming event, it sweeps every
// subscription, enqueues a DeliveredEvent for each match, and removes
// one-shot subscriptions that matched — after the full sweep, so a
// one-shot subscription that matches is still counted for every
// subscriber it should reach this round.
func (s *Service) handle(e event.Event) {
	eventType := eventTypeOf(e)
	actor := e.Actor()

	s.mu.Lock()
	defer s.mu.Unlock()

	var toRemove []string
	for id, sub := range s.subscriptions {
		if !matchesAny(sub.EventTypes, eventType) {
			continue
		}
		if sub.ExcludeSelf && actor != "" && actor == sub.AgentID {
			continue
		}
		s.pending[sub.AgentID] = append(s.pending[sub.AgentID], DeliveredEvent{
			EventType: eventType,
			Event:     e,
			Delivered: time.Now(),
		})
		if sub.OneShot {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		delete(s.subscriptions, id)
	}
}

func matchesAny(patterns []string, eventType string) bool {
	for _, p := range patterns {
		if matches(p, eventType) {
			return true
		}
	}
	return false
}

func matches(pattern, eventType string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ":*"); ok {
		return strings.HasPrefix(eventType, prefix+":")
	}
	return pattern == eventType
}

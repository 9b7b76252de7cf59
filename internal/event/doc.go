// Package event defines the AgentEvent tagged union and the fan-out Bus
// that decouples the coordinator, the subscription service, and any
// streaming mirrors from one another.
//
// # Main Types
//
//   - [Event]: interface every AgentEvent variant satisfies (EventType, Actor, Timestamp)
//   - [Bus]: fan-out dispatcher with a blocking Emit and a non-blocking TryEmit
//   - [Handler]: function type for synchronous subscriptions (func(Event))
//
// # Event Variants
//
//   - [AgentCreatedEvent], [AgentStatusChangedEvent], [AgentCompletedEvent]
//   - [MessageReceivedEvent]
//   - [TaskStatusChangedEvent], [TaskDelegatedEvent]
//   - [OrchestratorPhaseChangedEvent]
//
// # emit vs tryEmit
//
// Emit is the core-path primitive: it suspends until every handler
// subscription has run, so a mutating tool call that emits an event is
// guaranteed the event was delivered before the tool returns. TryEmit is
// for best-effort mirrors only (the websocket streaming surface): it
// writes to each channel subscription's own bounded buffer and never
// blocks the caller, reporting false when a subscriber's buffer is full
// rather than propagating that as a core-path error.
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously under
// Emit and are protected against panics: a panicking handler cannot
// prevent delivery to the remaining subscriptions.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe("agent.status_changed", func(e event.Event) {
//	    changed := e.(event.AgentStatusChangedEvent)
//	    log.Printf("agent %s: %s -> %s", changed.AgentID, changed.Old, changed.New)
//	})
//
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	bus.Emit(event.NewAgentStatusChangedEvent("a1", "PENDING", "ACTIVE"))
//
//	id, updates := bus.SubscribeChannel("agent.status_changed", 256)
//	defer bus.Unsubscribe(id)
//	bus.TryEmit(event.NewAgentStatusChangedEvent("a1", "ACTIVE", "COMPLETED"))
//	<-updates
package event

// Package testutil provides fixtures for exercising the coordination core
// end to end: wired-together stores, bus, subscription service, tool
// surface, coordinator, and orchestrator, backed by a deterministic
// provider.MockProvider instead of a real model backend.
package testutil

import (
	"testing"

	"github.com/routa-dev/routa/internal/coordinator"
	"github.com/routa-dev/routa/internal/event"
	"github.com/routa-dev/routa/internal/orchestrator"
	"github.com/routa-dev/routa/internal/provider"
	"github.com/routa-dev/routa/internal/store"
	"github.com/routa-dev/routa/internal/subscription"
	"github.com/routa-dev/routa/internal/tools"
)

// Harness bundles a fully wired coordination core for tests: the three
// stores, the event bus, the subscription service, the tool surface, the
// coordinator, the orchestrator, and the mock provider driving it.
type Harness struct {
	Agents        store.AgentStore
	Tasks         store.TaskStore
	Conversations store.ConversationStore
	Bus           *event.Bus
	Subscriptions *subscription.Service
	Tools         *tools.Tools
	Provider      *provider.MockProvider
	Coordinator   *coordinator.Coordinator
	Orchestrator  *orchestrator.Orchestrator
}

// NewHarness wires a fresh in-memory coordination core with maxWaves and
// starts its subscription service, registering a cleanup to stop it when
// the test ends.
func NewHarness(t *testing.T, maxWaves int) *Harness {
	t.Helper()

	bus := event.NewBus()
	subs := subscription.NewService()
	subs.Start(bus)
	t.Cleanup(subs.Stop)

	agents := store.NewInMemoryAgentStore()
	tasks := store.NewInMemoryTaskStore()
	conversations := store.NewInMemoryConversationStore()
	tl := tools.New(agents, tasks, conversations, bus, subs)

	coord := coordinator.New(coordinator.Config{
		Tools:         tl,
		Agents:        agents,
		Tasks:         tasks,
		Conversations: conversations,
		Bus:           bus,
		Subscriptions: subs,
	})

	mock := provider.NewMockProvider()

	orch := orchestrator.New(orchestrator.Config{
		Coordinator:   coord,
		Provider:      mock,
		Tools:         tl,
		Agents:        agents,
		Conversations: conversations,
		Bus:           bus,
		MaxWaves:      maxWaves,
	})

	return &Harness{
		Agents:        agents,
		Tasks:         tasks,
		Conversations: conversations,
		Bus:           bus,
		Subscriptions: subs,
		Tools:         tl,
		Provider:      mock,
		Coordinator:   coord,
		Orchestrator:  orch,
	}
}

// OneTaskPlan is a minimal ROUTA plan producing a single task with no
// dependencies.
const OneTaskPlan = `@@@task
# Implement the feature

## Objective
Add the requested functionality.

## Scope
- pkg/feature.go

## Definition of Done
- Feature behaves as described
- Tests pass

## Verification
- go test ./pkg/...
@@@
`

// TwoIndependentTasksPlan produces two tasks with no dependencies between
// them, so both are ready in the same wave.
const TwoIndependentTasksPlan = `@@@task
# Add retry logic

## Objective
Retry failed HTTP calls with exponential backoff.

## Scope
- internal/client/retry.go

## Definition of Done
- Exponential backoff implemented
- Unit tests pass

## Verification
- go test ./internal/client/...
@@@

@@@task
# Document retry behavior

## Objective
Explain the retry policy in the README.

## Scope
- README.md

## Definition of Done
- README updated

## Verification
- go build ./...
@@@
`

// NoTasksPlan contains prose but no `@@@task` blocks, exercising the
// orchestrator's ErrNoTasks path.
const NoTasksPlan = `After reviewing the request, no code changes are necessary: the
behavior described is already covered by the existing test suite.
`

// ApprovedVerdict is a GATE response that approves every REVIEW_REQUIRED
// task in the wave.
const ApprovedVerdict = "Reviewed the changes against the acceptance criteria. APPROVED"

// RejectedVerdict is a GATE response that sends every REVIEW_REQUIRED task
// back for rework.
const RejectedVerdict = "The verification commands were not run. NOT APPROVED"

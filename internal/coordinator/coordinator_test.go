package coordinator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/routa-dev/routa/internal/event"
	"github.com/routa-dev/routa/internal/store"
	"github.com/routa-dev/routa/internal/subscription"
	"github.com/routa-dev/routa/internal/tools"
)

const samplePlan = `Here is the plan.

@@@task
# Add retry logic

## Objective
Retry failed HTTP calls with backoff.

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

func newTestCoordinator(t *testing.T) (*Coordinator, *tools.Tools, store.TaskStore) {
	t.Helper()

	bus := event.NewBus()
	subs := subscription.NewService()
	subs.Start(bus)
	t.Cleanup(subs.Stop)

	agents := store.NewInMemoryAgentStore()
	tasks := store.NewInMemoryTaskStore()
	conversations := store.NewInMemoryConversationStore()
	tl := tools.New(agents, tasks, conversations, bus, subs)

	c := New(Config{
		Tools:         tl,
		Agents:        agents,
		Tasks:         tasks,
		Conversations: conversations,
		Bus:           bus,
		Subscriptions: subs,
	})
	return c, tl, tasks
}

func completeWave(t *testing.T, tl *tools.Tools, delegations []Delegation) {
	t.Helper()
	for _, d := range delegations {
		result := tl.ReportToParent(store.CompletionReport{
			AgentID: d.CrafterID,
			TaskID:  d.TaskID,
			Summary: "done",
			Success: true,
		})
		if !result.Success {
			t.Fatalf("ReportToParent failed: %s", result.Error)
		}
	}
}

func TestCoordinator_InitializeCreatesRoutaAndTransitionsToPlanning(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	routaID, err := c.Initialize("ws-1")
	if err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if routaID == "" {
		t.Fatal("expected a non-empty ROUTA agent id")
	}
	if c.State().Phase != PhasePlanning {
		t.Errorf("phase = %s, want PLANNING", c.State().Phase)
	}
}

func TestCoordinator_RegisterTasksTransitionsToReady(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	c.Initialize("ws-1")

	ids, err := c.RegisterTasks(samplePlan)
	if err != nil {
		t.Fatalf("RegisterTasks returned error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(ids))
	}
	if c.State().Phase != PhaseReady {
		t.Errorf("phase = %s, want READY", c.State().Phase)
	}
}

func TestCoordinator_RegisterTasksWithNoTasksStaysInPlanning(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	c.Initialize("ws-1")

	ids, err := c.RegisterTasks("no task blocks here")
	if err != nil {
		t.Fatalf("RegisterTasks returned error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected 0 tasks, got %d", len(ids))
	}
	if c.State().Phase != PhasePlanning {
		t.Errorf("phase = %s, want to remain PLANNING", c.State().Phase)
	}
}

func TestCoordinator_ExecuteNextWaveDelegatesEveryReadyTask(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	c.Initialize("ws-1")
	c.RegisterTasks(samplePlan)

	delegations, err := c.ExecuteNextWave()
	if err != nil {
		t.Fatalf("ExecuteNextWave returned error: %v", err)
	}
	if len(delegations) != 2 {
		t.Fatalf("expected 2 delegations, got %d", len(delegations))
	}
	if c.State().Phase != PhaseExecuting {
		t.Errorf("phase = %s, want EXECUTING", c.State().Phase)
	}
	if len(c.State().ActiveCrafterIDs) != 2 {
		t.Errorf("expected 2 active crafters, got %d", len(c.State().ActiveCrafterIDs))
	}
}

func TestCoordinator_ObserveWaveCompletionBlocksUntilAllCraftersCompleted(t *testing.T) {
	c, tl, _ := newTestCoordinator(t)
	c.Initialize("ws-1")
	c.RegisterTasks(samplePlan)
	delegations, _ := c.ExecuteNextWave()

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- c.ObserveWaveCompletion(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	completeWave(t, tl, delegations)

	if err := <-done; err != nil {
		t.Fatalf("ObserveWaveCompletion returned error: %v", err)
	}
	if c.State().Phase != PhaseWaveComplete {
		t.Errorf("phase = %s, want WAVE_COMPLETE", c.State().Phase)
	}
}

func TestCoordinator_StartVerificationCreatesGate(t *testing.T) {
	c, tl, _ := newTestCoordinator(t)
	c.Initialize("ws-1")
	c.RegisterTasks(samplePlan)
	delegations, _ := c.ExecuteNextWave()
	completeWave(t, tl, delegations)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.ObserveWaveCompletion(ctx); err != nil {
		t.Fatalf("ObserveWaveCompletion returned error: %v", err)
	}

	gateID, err := c.StartVerification()
	if err != nil {
		t.Fatalf("StartVerification returned error: %v", err)
	}
	if gateID == "" {
		t.Fatal("expected a non-empty GATE agent id")
	}
	if c.State().Phase != PhaseVerifying {
		t.Errorf("phase = %s, want VERIFYING", c.State().Phase)
	}
	if c.State().ActiveGateID != gateID {
		t.Errorf("ActiveGateID = %q, want %q", c.State().ActiveGateID, gateID)
	}
}

func runThroughVerification(t *testing.T, c *Coordinator, tl *tools.Tools) {
	t.Helper()
	c.Initialize("ws-1")
	c.RegisterTasks(samplePlan)
	delegations, err := c.ExecuteNextWave()
	if err != nil {
		t.Fatalf("ExecuteNextWave returned error: %v", err)
	}
	completeWave(t, tl, delegations)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.ObserveWaveCompletion(ctx); err != nil {
		t.Fatalf("ObserveWaveCompletion returned error: %v", err)
	}
	if _, err := c.StartVerification(); err != nil {
		t.Fatalf("StartVerification returned error: %v", err)
	}
}

func TestCoordinator_RecordVerdictApprovedCompletesWorkspace(t *testing.T) {
	c, tl, _ := newTestCoordinator(t)
	runThroughVerification(t, c, tl)

	if err := c.RecordVerdict("Everything looks good. APPROVED"); err != nil {
		t.Fatalf("RecordVerdict returned error: %v", err)
	}
	if c.State().Phase != PhaseCompleted {
		t.Errorf("phase = %s, want COMPLETED", c.State().Phase)
	}
}

func TestCoordinator_RecordVerdictNotApprovedReturnsToNeedsFix(t *testing.T) {
	c, tl, tasks := newTestCoordinator(t)
	runThroughVerification(t, c, tl)

	if err := c.RecordVerdict("The backoff is missing jitter. NOT APPROVED"); err != nil {
		t.Fatalf("RecordVerdict returned error: %v", err)
	}
	if c.State().Phase != PhaseNeedsFix {
		t.Errorf("phase = %s, want NEEDS_FIX", c.State().Phase)
	}

	pending := tasks.ListByStatus("ws-1", store.TaskPending)
	if len(pending) == 0 {
		t.Error("expected at least one task returned to PENDING for rework")
	}
}

func TestCoordinator_RecordVerdictAmbiguousTreatsAsNotApproved(t *testing.T) {
	c, tl, _ := newTestCoordinator(t)
	runThroughVerification(t, c, tl)

	if err := c.RecordVerdict("I have mixed feelings. APPROVED but also NOT APPROVED"); err != nil {
		t.Fatalf("RecordVerdict returned error: %v", err)
	}
	if c.State().Phase != PhaseNeedsFix {
		t.Errorf("phase = %s, want NEEDS_FIX on ambiguous verdict", c.State().Phase)
	}
}

func TestCoordinator_RecordVerdictAbsentMarkerIsBlocked(t *testing.T) {
	c, tl, tasks := newTestCoordinator(t)
	runThroughVerification(t, c, tl)

	if err := c.RecordVerdict("I could not finish reviewing in time."); err != nil {
		t.Fatalf("RecordVerdict returned error: %v", err)
	}

	blocked := tasks.ListByStatus("ws-1", store.TaskBlocked)
	if len(blocked) == 0 {
		t.Error("expected tasks to be BLOCKED when no verdict marker is present")
	}
}

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		output string
		want   store.VerificationVerdict
	}{
		{"Looks great, APPROVED", store.VerdictApproved},
		{"Needs work. NOT APPROVED", store.VerdictNotApproved},
		{"✅ APPROVED", store.VerdictApproved},
		{"❌ NOT APPROVED", store.VerdictNotApproved},
		{"I reviewed the code but ran out of time", store.VerdictBlocked},
		{"APPROVED and also NOT APPROVED", store.VerdictNotApproved},
	}
	for _, tc := range cases {
		if got := ParseVerdict(tc.output); got != tc.want {
			t.Errorf("ParseVerdict(%q) = %s, want %s", tc.output, got, tc.want)
		}
	}
}

func TestCoordinator_BuildAgentContextIncludesRoleTextAndTaskSnapshot(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	c.Initialize("ws-1")
	c.RegisterTasks(samplePlan)
	delegations, err := c.ExecuteNextWave()
	if err != nil {
		t.Fatalf("ExecuteNextWave returned error: %v", err)
	}

	ctx, err := c.BuildAgentContext(delegations[0].CrafterID)
	if err != nil {
		t.Fatalf("BuildAgentContext returned error: %v", err)
	}
	if ctx == "" {
		t.Fatal("expected non-empty context")
	}
}

func TestCoordinator_ResetClearsActiveAgents(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	c.Initialize("ws-1")
	c.RegisterTasks(samplePlan)
	c.ExecuteNextWave()

	c.Reset()

	if len(c.State().ActiveCrafterIDs) != 0 {
		t.Error("expected ActiveCrafterIDs to be cleared after Reset")
	}
	if c.State().ActiveGateID != "" {
		t.Error("expected ActiveGateID to be cleared after Reset")
	}
}

func TestCoordinator_ShutdownStopsSubscriptionDelivery(t *testing.T) {
	c, tl, _ := newTestCoordinator(t)
	c.Initialize("ws-1")

	c.Shutdown()

	// After shutdown, creating more agents must not panic even though the
	// subscription service no longer consumes the bus.
	result := tl.CreateAgent("ws-1", store.RoleCrafter, "", "", store.TierFast)
	if !result.Success {
		t.Fatalf("CreateAgent after shutdown failed: %s", result.Error)
	}
}

func TestCoordinator_ExecuteNextWaveEmitsQueueDepth(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	c.Initialize("ws-1")

	var depths []event.TaskQueueDepthChangedEvent
	subID := c.bus.Subscribe("task.queue_depth_changed", func(e event.Event) {
		depths = append(depths, e.(event.TaskQueueDepthChangedEvent))
	})
	defer c.bus.Unsubscribe(subID)

	c.RegisterTasks(samplePlan)
	if _, err := c.ExecuteNextWave(); err != nil {
		t.Fatalf("ExecuteNextWave returned error: %v", err)
	}

	if len(depths) == 0 {
		t.Fatal("expected at least one queue depth event")
	}
	last := depths[len(depths)-1]
	if last.Total != 2 {
		t.Errorf("Total = %d, want 2", last.Total)
	}
}

func TestCoordinator_AppendOverlapContextSharesCompletedWork(t *testing.T) {
	c, tl, tasks := newTestCoordinator(t)
	c.Initialize("ws-1")
	c.RegisterTasks(samplePlan)
	delegations, err := c.ExecuteNextWave()
	if err != nil {
		t.Fatalf("ExecuteNextWave returned error: %v", err)
	}

	all := tasks.ListByWorkspace("ws-1")
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(all))
	}
	completed := all[0]
	completed.Scope = []string{"internal/client/retry.go"}
	completed.Status = store.TaskCompleted
	completed.CompletionSummary = "Implemented exponential backoff with jitter."
	tasks.Save(completed)

	var target Delegation
	for _, d := range delegations {
		if d.TaskID != completed.ID {
			target = d
		}
	}
	other, err := tasks.Get(target.TaskID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	other.Scope = []string{"internal/client/retry.go"}
	tasks.Save(other)

	ctx, err := c.BuildAgentContext(target.CrafterID)
	if err != nil {
		t.Fatalf("BuildAgentContext returned error: %v", err)
	}
	if !strings.Contains(ctx, "Implemented exponential backoff with jitter.") {
		t.Error("expected context to include the overlapping task's completion summary")
	}

	completeWave(t, tl, []Delegation{target})
}

func TestCoordinator_ExecuteNextWaveWrongPhasePanics(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic when calling ExecuteNextWave before READY")
		}
	}()
	c.ExecuteNextWave()
}

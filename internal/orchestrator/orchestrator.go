// Package orchestrator implements the outer driver loop: it takes a
// workspace from a user request through planning, wave-based execution,
// and gate verification, up to a capped number of waves, emitting
// OrchestratorPhaseChangedEvent at every state boundary it crosses.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/routa-dev/routa/internal/coordinator"
	routaerrors "github.com/routa-dev/routa/internal/errors"
	"github.com/routa-dev/routa/internal/event"
	"github.com/routa-dev/routa/internal/logging"
	"github.com/routa-dev/routa/internal/provider"
	"github.com/routa-dev/routa/internal/store"
	"github.com/routa-dev/routa/internal/tools"
)

// ErrNoTasks is returned when a ROUTA plan produces no `@@@task` blocks.
var ErrNoTasks = routaerrors.New("orchestrator: plan produced no tasks")

// Result summarizes one Run call.
type Result struct {
	WorkspaceID string
	Phase       coordinator.Phase
	Waves       int
	Completed   bool
}

// Config wires an Orchestrator's collaborators.
type Config struct {
	Coordinator   *coordinator.Coordinator
	Provider      provider.Provider
	Tools         *tools.Tools
	Agents        store.AgentStore
	Conversations store.ConversationStore
	Bus           *event.Bus
	MaxWaves      int // default 5
	// Logger receives phase transitions and crafter failure diagnostics.
	// Defaults to logging.NopLogger() when nil.
	Logger *logging.Logger
}

// Orchestrator drives a single workspace's coordination lifecycle.
type Orchestrator struct {
	coordinator   *coordinator.Coordinator
	provider      provider.Provider
	tools         *tools.Tools
	agents        store.AgentStore
	conversations store.ConversationStore
	bus           *event.Bus
	maxWaves      int
	logger        *logging.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	maxWaves := cfg.MaxWaves
	if maxWaves <= 0 {
		maxWaves = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Orchestrator{
		coordinator:   cfg.Coordinator,
		provider:      cfg.Provider,
		tools:         cfg.Tools,
		agents:        cfg.Agents,
		conversations: cfg.Conversations,
		bus:           cfg.Bus,
		maxWaves:      maxWaves,
		logger:        logger,
	}
}

// Run drives workspaceID from userRequest through planning, wave execution,
// and verification, up to maxWaves. It returns ErrNoTasks if the ROUTA plan
// produces no tasks, and a MaxWavesReachedError if the wave budget is
// exhausted without reaching COMPLETED.
func (o *Orchestrator) Run(ctx context.Context, workspaceID, userRequest string) (Result, error) {
	log := o.logger.WithSession(workspaceID)
	log.Info("run starting", "request", userRequest)

	phase := event.PhaseInitializing
	o.emitPhase(workspaceID, phase, phase, 0)

	routaID, err := o.coordinator.Initialize(workspaceID)
	if err != nil {
		log.Error("initialize failed", "err", err)
		return Result{}, fmt.Errorf("orchestrator: initialize: %w", err)
	}

	phase = o.advance(workspaceID, phase, event.PhasePlanning, 0)
	o.conversations.Append(store.Message{
		ID:        uuid.NewString(),
		AgentID:   routaID,
		Role:      store.MessageRoleUser,
		Content:   userRequest,
		Timestamp: time.Now(),
	})

	routaContext, err := o.coordinator.BuildAgentContext(routaID)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: building ROUTA context: %w", err)
	}
	plan, err := o.provider.Run(ctx, store.RoleRouta, routaID, routaContext)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: running ROUTA: %w", err)
	}
	o.conversations.Append(store.Message{
		ID:          uuid.NewString(),
		AgentID:     routaID,
		Role:        store.MessageRoleAgent,
		Content:     plan,
		FromAgentID: routaID,
		Timestamp:   time.Now(),
	})
	phase = o.advance(workspaceID, phase, event.PhasePlanReady, 0)

	taskIDs, err := o.coordinator.RegisterTasks(plan)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: registering tasks: %w", err)
	}
	if len(taskIDs) == 0 {
		return Result{WorkspaceID: workspaceID, Phase: coordinator.PhasePlanning}, ErrNoTasks
	}
	phase = o.advance(workspaceID, phase, event.PhaseTasksRegistered, 0)

	for wave := 1; wave <= o.maxWaves; wave++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		phase = o.advance(workspaceID, phase, event.PhaseWaveStarting, wave)
		delegations, err := o.coordinator.ExecuteNextWave()
		if err != nil {
			return Result{}, fmt.Errorf("orchestrator: executing wave %d: %w", wave, err)
		}

		phase = o.advance(workspaceID, phase, event.PhaseCrafterRunning, wave)
		o.runCraftersConcurrently(ctx, delegations)
		phase = o.advance(workspaceID, phase, event.PhaseCrafterCompleted, wave)

		if err := o.coordinator.ObserveWaveCompletion(ctx); err != nil {
			return Result{}, fmt.Errorf("orchestrator: observing wave %d completion: %w", wave, err)
		}

		phase = o.advance(workspaceID, phase, event.PhaseVerificationStarting, wave)
		gateID, err := o.coordinator.StartVerification()
		if err != nil {
			return Result{}, fmt.Errorf("orchestrator: starting verification for wave %d: %w", wave, err)
		}
		verdict, err := o.runGate(ctx, gateID)
		if err != nil {
			return Result{}, fmt.Errorf("orchestrator: running GATE for wave %d: %w", wave, err)
		}

		if err := o.coordinator.RecordVerdict(verdict); err != nil {
			return Result{}, fmt.Errorf("orchestrator: recording verdict for wave %d: %w", wave, err)
		}
		phase = o.advance(workspaceID, phase, event.PhaseVerificationComplete, wave)

		state := o.coordinator.State()
		if state.Phase == coordinator.PhaseCompleted {
			o.advance(workspaceID, phase, event.PhaseCompleted, wave)
			log.Info("run completed", "waves", wave)
			return Result{WorkspaceID: workspaceID, Phase: state.Phase, Waves: wave, Completed: true}, nil
		}

		phase = o.advance(workspaceID, phase, event.PhaseNeedsFix, wave)
	}

	o.advance(workspaceID, phase, event.PhaseMaxWavesReached, o.maxWaves)
	log.Warn("run exhausted wave budget without completing", "maxWaves", o.maxWaves)
	return Result{WorkspaceID: workspaceID, Phase: o.coordinator.State().Phase, Waves: o.maxWaves},
		routaerrors.NewMaxWavesReachedError(workspaceID, o.maxWaves)
}

// runCraftersConcurrently runs every CRAFTER in the wave's delegations
// concurrently and reports each one's output to its parent as a completion.
func (o *Orchestrator) runCraftersConcurrently(ctx context.Context, delegations []coordinator.Delegation) {
	var wg sync.WaitGroup
	for _, d := range delegations {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.runCrafter(ctx, d)
		}()
	}
	wg.Wait()
}

// runCrafter runs a single CRAFTER's provider call and synthesizes a
// report_to_parent call from its output, since the coordination core has
// no separate tool-calling loop for CRAFTER agents to invoke the tool
// themselves — the provider's full reply is treated as the completion.
func (o *Orchestrator) runCrafter(ctx context.Context, d coordinator.Delegation) {
	crafterContext, err := o.coordinator.BuildAgentContext(d.CrafterID)
	if err != nil {
		return
	}

	output, err := o.provider.Run(ctx, store.RoleCrafter, d.CrafterID, crafterContext)
	if err != nil {
		output = fmt.Sprintf("[provider error: %v]", err)
		o.logger.Warn("crafter provider run failed, synthesizing failure report", "crafterId", d.CrafterID, "taskId", d.TaskID, "err", err)
	}

	o.conversations.Append(store.Message{
		ID:          uuid.NewString(),
		AgentID:     d.CrafterID,
		Role:        store.MessageRoleAgent,
		Content:     output,
		FromAgentID: d.CrafterID,
		Timestamp:   time.Now(),
	})

	o.tools.ReportToParent(store.CompletionReport{
		AgentID: d.CrafterID,
		TaskID:  d.TaskID,
		Summary: output,
		Success: err == nil,
	})
}

// runGate runs the GATE's provider call, appends its output to its own
// transcript for audit, and transitions the agent to COMPLETED. GATE has
// no assigned task, so it cannot go through report_to_parent the way
// CRAFTERs do; its completion is a pure status transition.
func (o *Orchestrator) runGate(ctx context.Context, gateID string) (string, error) {
	gateContext, err := o.coordinator.BuildAgentContext(gateID)
	if err != nil {
		return "", err
	}

	output, err := o.provider.Run(ctx, store.RoleGate, gateID, gateContext)
	if err != nil {
		return "", err
	}

	o.conversations.Append(store.Message{
		ID:          uuid.NewString(),
		AgentID:     gateID,
		Role:        store.MessageRoleAgent,
		Content:     output,
		FromAgentID: gateID,
		Timestamp:   time.Now(),
	})

	if err := o.agents.UpdateStatus(gateID, store.AgentActive, store.AgentCompleted); err != nil {
		return output, nil
	}
	o.bus.Emit(event.NewAgentStatusChangedEvent(gateID, string(store.AgentActive), string(store.AgentCompleted)))
	o.bus.Emit(event.NewAgentCompletedEvent(gateID, "", output, verdictLabel(output)))

	return output, nil
}

func verdictLabel(output string) string {
	switch coordinator.ParseVerdict(output) {
	case store.VerdictApproved:
		return "APPROVED"
	case store.VerdictNotApproved:
		return "NOT APPROVED"
	default:
		return ""
	}
}

func (o *Orchestrator) emitPhase(workspaceID string, previous, current event.OrchestratorPhase, wave int) {
	o.bus.Emit(event.NewOrchestratorPhaseChangedEvent(workspaceID, previous, current, wave))
}

// advance emits a phase-changed event for the previous->current transition,
// logs it, and returns current, so callers can chain `phase = o.advance(...)`.
func (o *Orchestrator) advance(workspaceID string, previous, current event.OrchestratorPhase, wave int) event.OrchestratorPhase {
	o.emitPhase(workspaceID, previous, current, wave)
	o.logger.WithSession(workspaceID).WithPhase(string(current)).Info("phase transition", "previous", string(previous), "wave", wave)
	return current
}

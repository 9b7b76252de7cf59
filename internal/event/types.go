// Package event defines the AgentEvent tagged union routa uses to decouple
// the coordinator, the subscription service, and any streaming mirrors
// (the HTTP/websocket surface) from one another.
package event

import "time"

// Event is the interface every AgentEvent variant satisfies.
type Event interface {
	// EventType returns a string identifier for this event, derived from
	// the variant by pattern match rather than from a Go type name, so
	// serialization stays stable across implementations.
	EventType() string

	// Actor returns the agent ID most naturally associated with this
	// event, used by the subscription service for excludeSelf filtering.
	Actor() string

	Timestamp() time.Time
}

type baseEvent struct {
	eventType string
	actor     string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Actor() string        { return e.actor }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType, actor string) baseEvent {
	return baseEvent{eventType: eventType, actor: actor, timestamp: time.Now()}
}

// AgentCreatedEvent is emitted when create_agent produces a new Agent record.
type AgentCreatedEvent struct {
	baseEvent
	AgentID     string
	WorkspaceID string
	ParentID    string // empty for the root ROUTA agent
	Role        string
}

// NewAgentCreatedEvent creates an AgentCreatedEvent.
func NewAgentCreatedEvent(agentID, workspaceID, parentID, role string) AgentCreatedEvent {
	return AgentCreatedEvent{
		baseEvent:   newBaseEvent("agent.created", agentID),
		AgentID:     agentID,
		WorkspaceID: workspaceID,
		ParentID:    parentID,
		Role:        role,
	}
}

// AgentStatusChangedEvent is emitted on every agent status transition.
type AgentStatusChangedEvent struct {
	baseEvent
	AgentID string
	Old     string
	New     string
}

// NewAgentStatusChangedEvent creates an AgentStatusChangedEvent.
func NewAgentStatusChangedEvent(agentID, oldStatus, newStatus string) AgentStatusChangedEvent {
	return AgentStatusChangedEvent{
		baseEvent: newBaseEvent("agent.status_changed", agentID),
		AgentID:   agentID,
		Old:       oldStatus,
		New:       newStatus,
	}
}

// AgentCompletedEvent is emitted when report_to_parent transitions an agent
// ACTIVE to COMPLETED.
type AgentCompletedEvent struct {
	baseEvent
	AgentID  string
	ParentID string
	Summary  string
	Verdict  string // non-empty for GATE reports: "APPROVED" or "NOT APPROVED"
}

// NewAgentCompletedEvent creates an AgentCompletedEvent.
func NewAgentCompletedEvent(agentID, parentID, summary, verdict string) AgentCompletedEvent {
	return AgentCompletedEvent{
		baseEvent: newBaseEvent("agent.completed", agentID),
		AgentID:   agentID,
		ParentID:  parentID,
		Summary:   summary,
		Verdict:   verdict,
	}
}

// MessageReceivedEvent is emitted when one agent's conversation receives a
// message from another, whether via send_message_to_agent or a tool-driven
// system append (e.g. a delegation or completion-report message).
type MessageReceivedEvent struct {
	baseEvent
	From    string
	To      string
	Content string
}

// NewMessageReceivedEvent creates a MessageReceivedEvent. Actor is the
// sender (From), so a subscriber that excludes its own events never
// misses a message because it happened to be the recipient.
func NewMessageReceivedEvent(from, to, content string) MessageReceivedEvent {
	return MessageReceivedEvent{
		baseEvent: newBaseEvent("message.received", from),
		From:      from,
		To:        to,
		Content:   content,
	}
}

// TaskStatusChangedEvent is emitted on every task status transition.
type TaskStatusChangedEvent struct {
	baseEvent
	TaskID string
	Old    string
	New    string
}

// NewTaskStatusChangedEvent creates a TaskStatusChangedEvent. It has no
// actor: task status transitions are driven by the coordinator, not by a
// single agent, so self-exclusion never applies to this event type.
func NewTaskStatusChangedEvent(taskID, oldStatus, newStatus string) TaskStatusChangedEvent {
	return TaskStatusChangedEvent{
		baseEvent: newBaseEvent("task.status_changed", ""),
		TaskID:    taskID,
		Old:       oldStatus,
		New:       newStatus,
	}
}

// TaskDelegatedEvent is emitted when delegate_task assigns a task to an agent.
type TaskDelegatedEvent struct {
	baseEvent
	TaskID      string
	AgentID     string
	DelegatedBy string
}

// NewTaskDelegatedEvent creates a TaskDelegatedEvent. Actor is the delegating
// agent, since delegation is an action the delegator performs.
func NewTaskDelegatedEvent(taskID, agentID, delegatedBy string) TaskDelegatedEvent {
	return TaskDelegatedEvent{
		baseEvent:   newBaseEvent("task.delegated", delegatedBy),
		TaskID:      taskID,
		AgentID:     agentID,
		DelegatedBy: delegatedBy,
	}
}

// OrchestratorPhase names a state boundary the driver loop has crossed.
// It is a separate, finer-grained type from coordinator.State's Phase, so
// this package does not depend on the coordinator.
type OrchestratorPhase string

const (
	PhaseInitializing         OrchestratorPhase = "initializing"
	PhasePlanning             OrchestratorPhase = "planning"
	PhasePlanReady            OrchestratorPhase = "plan_ready"
	PhaseTasksRegistered      OrchestratorPhase = "tasks_registered"
	PhaseWaveStarting         OrchestratorPhase = "wave_starting"
	PhaseCrafterRunning       OrchestratorPhase = "crafter_running"
	PhaseCrafterCompleted     OrchestratorPhase = "crafter_completed"
	PhaseVerificationStarting OrchestratorPhase = "verification_starting"
	PhaseVerificationComplete OrchestratorPhase = "verification_completed"
	PhaseNeedsFix             OrchestratorPhase = "needs_fix"
	PhaseCompleted            OrchestratorPhase = "completed"
	PhaseMaxWavesReached      OrchestratorPhase = "max_waves_reached"
)

// OrchestratorPhaseChangedEvent is emitted by the driver loop at every state
// boundary it crosses, independent of the per-agent/per-task events above.
type OrchestratorPhaseChangedEvent struct {
	baseEvent
	WorkspaceID   string
	PreviousPhase OrchestratorPhase
	CurrentPhase  OrchestratorPhase
	Wave          int
}

// NewOrchestratorPhaseChangedEvent creates an OrchestratorPhaseChangedEvent.
func NewOrchestratorPhaseChangedEvent(workspaceID string, previous, current OrchestratorPhase, wave int) OrchestratorPhaseChangedEvent {
	return OrchestratorPhaseChangedEvent{
		baseEvent:     newBaseEvent("orchestrator.phase_changed", workspaceID),
		WorkspaceID:   workspaceID,
		PreviousPhase: previous,
		CurrentPhase:  current,
		Wave:          wave,
	}
}

// TaskQueueDepthChangedEvent reports a snapshot of task counts by status for
// a workspace, emitted whenever a wave transition changes the mix.
type TaskQueueDepthChangedEvent struct {
	baseEvent
	WorkspaceID    string
	Pending        int
	InProgress     int
	ReviewRequired int
	Completed      int
	NeedsFix       int
	Blocked        int
	Total          int
}

// NewTaskQueueDepthChangedEvent creates a TaskQueueDepthChangedEvent.
func NewTaskQueueDepthChangedEvent(workspaceID string, pending, inProgress, reviewRequired, completed, needsFix, blocked, total int) TaskQueueDepthChangedEvent {
	return TaskQueueDepthChangedEvent{
		baseEvent:      newBaseEvent("task.queue_depth_changed", workspaceID),
		WorkspaceID:    workspaceID,
		Pending:        pending,
		InProgress:     inProgress,
		ReviewRequired: reviewRequired,
		Completed:      completed,
		NeedsFix:       needsFix,
		Blocked:        blocked,
		Total:          total,
	}
}

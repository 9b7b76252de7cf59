// Package store defines routa's entity types and the three pluggable
// stores that hold them: AgentStore, TaskStore, and ConversationStore. The
// in-memory implementations here are the reference backend; a durable
// backend must preserve the same query shapes and atomicity guarantees.
package store

import "time"

// AgentRole identifies which of the three pipeline roles an agent plays.
type AgentRole string

const (
	RoleRouta   AgentRole = "ROUTA"
	RoleCrafter AgentRole = "CRAFTER"
	RoleGate    AgentRole = "GATE"
)

// ModelTier selects which class of backend an agent's provider run uses.
type ModelTier string

const (
	TierSmart ModelTier = "SMART"
	TierFast  ModelTier = "FAST"
)

// AgentStatus is a position in the agent status lattice
// PENDING -> ACTIVE -> {COMPLETED|ERROR|CANCELLED}. There are no
// transitions back once a terminal state is reached.
type AgentStatus string

const (
	AgentPending   AgentStatus = "PENDING"
	AgentActive    AgentStatus = "ACTIVE"
	AgentCompleted AgentStatus = "COMPLETED"
	AgentError     AgentStatus = "ERROR"
	AgentCancelled AgentStatus = "CANCELLED"
)

// IsTerminal reports whether the status is a sink in the agent lattice.
func (s AgentStatus) IsTerminal() bool {
	return s == AgentCompleted || s == AgentError || s == AgentCancelled
}

// Agent is a single ROUTA, CRAFTER, or GATE participant in a workspace.
type Agent struct {
	ID          string
	Name        string
	Role        AgentRole
	ModelTier   ModelTier
	WorkspaceID string
	ParentID    string // empty for the workspace's ROUTA
	Status      AgentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Metadata    map[string]string
}

// TaskStatus is a position in the task status DAG
// PENDING -> IN_PROGRESS -> REVIEW_REQUIRED -> {COMPLETED|NEEDS_FIX}, with
// NEEDS_FIX -> PENDING the only back-edge. CANCELLED and BLOCKED are sinks
// for the wave they occur in.
type TaskStatus string

const (
	TaskPending        TaskStatus = "PENDING"
	TaskInProgress     TaskStatus = "IN_PROGRESS"
	TaskReviewRequired TaskStatus = "REVIEW_REQUIRED"
	TaskCompleted      TaskStatus = "COMPLETED"
	TaskNeedsFix       TaskStatus = "NEEDS_FIX"
	TaskBlocked        TaskStatus = "BLOCKED"
	TaskCancelled      TaskStatus = "CANCELLED"
)

// IsTerminal reports whether the status is a sink for the current wave.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

// VerificationVerdict is the GATE's judgment on a REVIEW_REQUIRED task.
type VerificationVerdict string

const (
	VerdictApproved    VerificationVerdict = "APPROVED"
	VerdictNotApproved VerificationVerdict = "NOT_APPROVED"
	VerdictBlocked     VerificationVerdict = "BLOCKED"
)

// Task is a single unit of work extracted from a ROUTA plan or created
// directly by the coordinator.
type Task struct {
	ID                   string
	Title                string
	Objective            string
	Scope                []string
	AcceptanceCriteria   []string
	VerificationCommands []string
	AssignedTo           string // agent id; set iff status is IN_PROGRESS/REVIEW_REQUIRED/NEEDS_FIX
	Status               TaskStatus
	Dependencies         []string // task ids
	ParallelGroup        string
	WorkspaceID          string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	CompletionSummary    string
	VerificationVerdict  VerificationVerdict
	VerificationReport   string
}

// MessageRole identifies who authored a conversation entry.
type MessageRole string

const (
	MessageRoleUser   MessageRole = "User"
	MessageRoleAgent  MessageRole = "Agent"
	MessageRoleSystem MessageRole = "System"
)

// Message is one append-only entry in an agent's conversation transcript.
type Message struct {
	ID          string
	AgentID     string // owner of this transcript
	Turn        int
	Role        MessageRole
	Content     string
	FromAgentID string // set when Role == Agent
	Timestamp   time.Time
}

// CompletionReport is what a CRAFTER or GATE hands to report_to_parent.
type CompletionReport struct {
	AgentID             string
	TaskID              string
	Summary             string // 1-3 sentences
	FilesModified       []string
	VerificationResults map[string]string // command -> output
	Success             bool
}

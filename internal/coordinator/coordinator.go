// Package coordinator implements the coordination state machine that
// drives a workspace from an initial user request through planning,
// wave-based execution, and gate verification to completion.
package coordinator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/routa-dev/routa/internal/event"
	"github.com/routa-dev/routa/internal/logging"
	"github.com/routa-dev/routa/internal/store"
	"github.com/routa-dev/routa/internal/subscription"
	"github.com/routa-dev/routa/internal/taskparser"
	"github.com/routa-dev/routa/internal/tools"
)

// Phase is a position in the coordination state machine.
type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhasePlanning     Phase = "PLANNING"
	PhaseReady        Phase = "READY"
	PhaseExecuting    Phase = "EXECUTING"
	PhaseWaveComplete Phase = "WAVE_COMPLETE"
	PhaseVerifying    Phase = "VERIFYING"
	PhaseNeedsFix     Phase = "NEEDS_FIX"
	PhaseCompleted    Phase = "COMPLETED"
)

// State is the single observable cell holding coordination state. All
// transitions happen inside the Coordinator; callers read but never
// write it directly.
type State struct {
	Phase            Phase
	WorkspaceID      string
	RoutaAgentID     string
	CurrentWave      int
	ActiveCrafterIDs []string
	ActiveGateID     string
}

// Delegation pairs a created CRAFTER with the task it was delegated.
type Delegation struct {
	CrafterID string
	TaskID    string
}

// Coordinator holds CoordinationState and exposes the public operations
// that drive a workspace through its lifecycle.
type Coordinator struct {
	mu    sync.Mutex
	state State

	tools         *tools.Tools
	agents        store.AgentStore
	tasks         store.TaskStore
	conversations store.ConversationStore
	bus           *event.Bus
	subscriptions *subscription.Service
	logger        *logging.Logger

	conversationTailMessages int
}

// Config wires a Coordinator's collaborators.
type Config struct {
	Tools                    *tools.Tools
	Agents                   store.AgentStore
	Tasks                    store.TaskStore
	Conversations            store.ConversationStore
	Bus                      *event.Bus
	Subscriptions            *subscription.Service
	ConversationTailMessages int // default 20
	// Logger receives ambiguous-verdict warnings. Defaults to
	// logging.NopLogger() when nil.
	Logger *logging.Logger
}

// New creates a Coordinator in phase IDLE.
func New(cfg Config) *Coordinator {
	tail := cfg.ConversationTailMessages
	if tail <= 0 {
		tail = 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Coordinator{
		state:                    State{Phase: PhaseIdle},
		tools:                    cfg.Tools,
		agents:                   cfg.Agents,
		tasks:                    cfg.Tasks,
		conversations:            cfg.Conversations,
		bus:                      cfg.Bus,
		subscriptions:            cfg.Subscriptions,
		conversationTailMessages: tail,
		logger:                   logger,
	}
}

// State returns a snapshot of the current coordination state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Coordinator) snapshot() State {
	s := c.state
	s.ActiveCrafterIDs = append([]string(nil), c.state.ActiveCrafterIDs...)
	return s
}

// Initialize creates a ROUTA agent for workspaceID and transitions
// IDLE->PLANNING.
func (c *Coordinator) Initialize(workspaceID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != PhaseIdle {
		panic(fmt.Sprintf("coordinator: initialize called in phase %s, want IDLE", c.state.Phase))
	}

	result := c.tools.CreateAgent(workspaceID, store.RoleRouta, "routa", "", store.TierSmart)
	if !result.Success {
		return "", fmt.Errorf("coordinator: initialize: %s", result.Error)
	}
	routaID := result.Data.(map[string]string)["agentId"]

	c.state.WorkspaceID = workspaceID
	c.state.RoutaAgentID = routaID
	c.state.Phase = PhasePlanning
	return routaID, nil
}

// RegisterTasks parses planText's `@@@task` blocks, saves the resulting
// Task records, and transitions PLANNING->READY if any were produced.
func (c *Coordinator) RegisterTasks(planText string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != PhasePlanning {
		panic(fmt.Sprintf("coordinator: registerTasks called in phase %s, want PLANNING", c.state.Phase))
	}

	parsed := taskparser.ParseTasks(planText)
	ids := make([]string, 0, len(parsed))
	for _, task := range parsed {
		task.WorkspaceID = c.state.WorkspaceID
		if err := c.tasks.Save(task); err != nil {
			return nil, err
		}
		ids = append(ids, task.ID)
	}

	if len(ids) > 0 {
		c.state.Phase = PhaseReady
	}
	return ids, nil
}

// ExecuteNextWave delegates every ready task to a fresh CRAFTER and
// transitions to EXECUTING. Requires phase READY or NEEDS_FIX.
func (c *Coordinator) ExecuteNextWave() ([]Delegation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != PhaseReady && c.state.Phase != PhaseNeedsFix {
		panic(fmt.Sprintf("coordinator: executeNextWave called in phase %s, want READY or NEEDS_FIX", c.state.Phase))
	}

	c.state.CurrentWave++
	wave := c.state.CurrentWave

	ready := c.tasks.FindReadyTasks(c.state.WorkspaceID)
	delegations := make([]Delegation, 0, len(ready))
	crafterIDs := make([]string, 0, len(ready))

	for _, task := range ready {
		name := fmt.Sprintf("crafter-%s-%d", slugify(task.Title), wave)
		created := c.tools.CreateAgent(c.state.WorkspaceID, store.RoleCrafter, name, c.state.RoutaAgentID, store.TierFast)
		if !created.Success {
			return nil, fmt.Errorf("coordinator: executeNextWave: %s", created.Error)
		}
		crafterID := created.Data.(map[string]string)["agentId"]

		delegated := c.tools.DelegateTask(task.ID, crafterID, c.state.RoutaAgentID)
		if !delegated.Success {
			return nil, fmt.Errorf("coordinator: executeNextWave: %s", delegated.Error)
		}

		delegations = append(delegations, Delegation{CrafterID: crafterID, TaskID: task.ID})
		crafterIDs = append(crafterIDs, crafterID)
	}

	c.state.ActiveCrafterIDs = crafterIDs
	c.state.Phase = PhaseExecuting
	c.publishQueueDepth()
	return delegations, nil
}

// BuildAgentContext returns the prompt an agent should receive: its
// role's behavior rules, its current task snapshot (if any), and the
// tail of its conversation.
func (c *Coordinator) BuildAgentContext(agentID string) (string, error) {
	agent, err := c.agents.Get(agentID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(roleSystemText(agent.Role))
	b.WriteString("\n\n")

	for _, task := range c.tasks.ListByAssignee(agentID) {
		if task.Status.IsTerminal() {
			continue
		}
		b.WriteString("Current task:\n")
		b.WriteString(taskSnapshot(task))
		b.WriteString("\n\n")

		if agent.Role == store.RoleCrafter {
			c.appendOverlapContext(&b, task)
		}
	}

	if agent.Role == store.RoleGate {
		c.appendCrafterAudit(&b, agentID)
	}

	tail := c.conversations.GetLastN(agentID, c.conversationTailMessages)
	if len(tail) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range tail {
			fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
		}
	}

	return b.String(), nil
}

// appendCrafterAudit includes read_agent_conversation output for every
// CRAFTER in the current wave, resolving the GATE cross-agent visibility
// open question in favor of visibility.
func (c *Coordinator) appendCrafterAudit(b *strings.Builder, gateAgentID string) {
	c.mu.Lock()
	crafterIDs := append([]string(nil), c.state.ActiveCrafterIDs...)
	c.mu.Unlock()

	for _, crafterID := range crafterIDs {
		msgs := c.conversations.GetConversation(crafterID)
		if len(msgs) == 0 {
			continue
		}
		fmt.Fprintf(b, "Conversation audit for %s:\n", crafterID)
		for _, m := range msgs {
			fmt.Fprintf(b, "[%s] %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}
}

// appendOverlapContext shares completion summaries from already-completed
// tasks in the same workspace whose scope files overlap task's, so a
// CRAFTER knows what a sibling task already touched in shared files.
// Adapted from the teacher's cross-instance discovery propagation, replacing
// its broadcast mailbox with a direct scan of the task store a single
// process already holds in memory.
func (c *Coordinator) appendOverlapContext(b *strings.Builder, task store.Task) {
	if len(task.Scope) == 0 {
		return
	}
	for _, other := range c.tasks.ListByWorkspace(task.WorkspaceID) {
		if other.ID == task.ID || other.Status != store.TaskCompleted || other.CompletionSummary == "" {
			continue
		}
		if !scopeOverlaps(task.Scope, other.Scope) {
			continue
		}
		summary := other.CompletionSummary
		if len(summary) > 500 {
			summary = summary[:500] + "..."
		}
		fmt.Fprintf(b, "Related completed work on shared files (%s):\n%s\n\n", other.Title, summary)
	}
}

func scopeOverlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// ObserveWaveCompletion blocks until every CRAFTER created for the
// current wave has status=COMPLETED, then transitions
// EXECUTING->WAVE_COMPLETE.
func (c *Coordinator) ObserveWaveCompletion(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Phase != PhaseExecuting {
		c.mu.Unlock()
		panic(fmt.Sprintf("coordinator: observeWaveCompletion called in phase %s, want EXECUTING", c.state.Phase))
	}
	crafterIDs := append([]string(nil), c.state.ActiveCrafterIDs...)
	c.mu.Unlock()

	if err := c.waitForAllCompleted(ctx, crafterIDs); err != nil {
		return err
	}

	c.mu.Lock()
	c.state.Phase = PhaseWaveComplete
	c.mu.Unlock()
	return nil
}

// waitForAllCompleted blocks until every agent id has reached
// store.AgentCompleted, or the context is cancelled. Grounded on the
// bus-subscribe-then-check pattern used to await terminal team phases.
func (c *Coordinator) waitForAllCompleted(ctx context.Context, agentIDs []string) error {
	done := make(chan struct{}, 1)

	checkDone := func() {
		for _, id := range agentIDs {
			a, err := c.agents.Get(id)
			if err != nil || a.Status != store.AgentCompleted {
				return
			}
		}
		select {
		case done <- struct{}{}:
		default:
		}
	}

	subID := c.bus.Subscribe("agent.status_changed", func(event.Event) {
		checkDone()
	})
	defer c.bus.Unsubscribe(subID)

	checkDone()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// StartVerification creates a GATE agent, sets activeGateId, and
// transitions WAVE_COMPLETE->VERIFYING.
func (c *Coordinator) StartVerification() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != PhaseWaveComplete {
		panic(fmt.Sprintf("coordinator: startVerification called in phase %s, want WAVE_COMPLETE", c.state.Phase))
	}

	name := fmt.Sprintf("gate-%d", c.state.CurrentWave)
	result := c.tools.CreateAgent(c.state.WorkspaceID, store.RoleGate, name, c.state.RoutaAgentID, store.TierSmart)
	if !result.Success {
		return "", fmt.Errorf("coordinator: startVerification: %s", result.Error)
	}
	gateID := result.Data.(map[string]string)["agentId"]

	c.state.ActiveGateID = gateID
	c.state.Phase = PhaseVerifying
	return gateID, nil
}

var (
	notApprovedRE = regexp.MustCompile(`(?i)[\p{So}\p{Sk}✅❌✔✗]*\s*NOT\s+APPROVED`)
	approvedRE    = regexp.MustCompile(`(?i)[\p{So}\p{Sk}✅❌✔✗]*\s*APPROVED`)
)

// ParseVerdict scans gate output for the markers APPROVED / NOT APPROVED,
// case-insensitive, with optional emoji/check/cross prefixes. NOT
// APPROVED wins over APPROVED; absence of either yields BLOCKED.
func ParseVerdict(gateOutput string) store.VerificationVerdict {
	if notApprovedRE.MatchString(gateOutput) {
		return store.VerdictNotApproved
	}
	if approvedRE.MatchString(gateOutput) {
		return store.VerdictApproved
	}
	return store.VerdictBlocked
}

// RecordVerdict parses gateOutput and applies the verdict to every task
// currently in REVIEW_REQUIRED, then transitions the phase.
func (c *Coordinator) RecordVerdict(gateOutput string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	verdict := ParseVerdict(gateOutput)
	if containsBoth(gateOutput) {
		// Ambiguous gate output: NOT APPROVED still wins, but this is
		// surfaced so operators can inspect gate output quality.
		c.emitAmbiguousVerdictWarning(gateOutput)
	}

	reviewing := c.tasks.ListByStatus(c.state.WorkspaceID, store.TaskReviewRequired)
	for _, task := range reviewing {
		c.applyVerdict(task, verdict)
	}

	allTasks := c.tasks.ListByWorkspace(c.state.WorkspaceID)
	allResolved := true
	for _, task := range allTasks {
		if task.Status != store.TaskCompleted {
			allResolved = false
			break
		}
	}

	if allResolved {
		c.state.Phase = PhaseCompleted
	} else {
		c.state.Phase = PhaseNeedsFix
	}
	c.publishQueueDepth()
	return nil
}

// publishQueueDepth emits a TaskQueueDepthChangedEvent for the workspace's
// current task mix. Grounded on the teacher's approval gate publishing a
// QueueDepthChangedEvent after every state-affecting operation.
func (c *Coordinator) publishQueueDepth() {
	d := c.tasks.Snapshot(c.state.WorkspaceID)
	c.bus.Emit(event.NewTaskQueueDepthChangedEvent(
		c.state.WorkspaceID, d.Pending, d.InProgress, d.ReviewRequired, d.Completed, d.NeedsFix, d.Blocked, d.Total,
	))
}

func (c *Coordinator) applyVerdict(task store.Task, verdict store.VerificationVerdict) {
	task.VerificationVerdict = verdict
	task.UpdatedAt = time.Now()

	from := task.Status
	switch verdict {
	case store.VerdictApproved:
		task.Status = store.TaskCompleted
	case store.VerdictNotApproved:
		task.Status = store.TaskNeedsFix
	case store.VerdictBlocked:
		task.Status = store.TaskBlocked
	}
	c.tasks.Save(task)
	c.bus.Emit(event.NewTaskStatusChangedEvent(task.ID, string(from), string(task.Status)))

	if verdict == store.VerdictNotApproved {
		task.Status = store.TaskPending
		task.AssignedTo = ""
		task.UpdatedAt = time.Now()
		c.tasks.Save(task)
		c.bus.Emit(event.NewTaskStatusChangedEvent(task.ID, string(store.TaskNeedsFix), string(store.TaskPending)))
	}
}

func (c *Coordinator) emitAmbiguousVerdictWarning(gateOutput string) {
	c.logger.WithSession(c.state.WorkspaceID).Warn(
		"gate output contains both APPROVED and NOT APPROVED markers, treating as NOT APPROVED",
		"wave", c.state.CurrentWave,
	)
}

func containsBoth(output string) bool {
	return approvedRE.MatchString(output) && notApprovedRE.MatchString(output)
}

// Reset clears the active CRAFTER and GATE ids. Stores are retained. It
// does not cancel any subscription, and an ObserveWaveCompletion call that
// is already waiting keeps waiting until its context is done.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.ActiveCrafterIDs = nil
	c.state.ActiveGateID = ""
}

// Shutdown cancels subscriptions, clears active ids, and stops consuming
// the bus via the subscription service.
func (c *Coordinator) Shutdown() {
	c.Reset()
	if c.subscriptions != nil {
		c.subscriptions.Stop()
	}
}

func slugify(title string) string {
	lower := strings.ToLower(title)
	var b strings.Builder
	lastDash := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "task"
	}
	return slug
}

func taskSnapshot(task store.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nObjective: %s\n", task.Title, task.Objective)
	if len(task.Scope) > 0 {
		fmt.Fprintf(&b, "Scope:\n- %s\n", strings.Join(task.Scope, "\n- "))
	}
	if len(task.AcceptanceCriteria) > 0 {
		fmt.Fprintf(&b, "Definition of Done:\n- %s\n", strings.Join(task.AcceptanceCriteria, "\n- "))
	}
	if len(task.VerificationCommands) > 0 {
		fmt.Fprintf(&b, "Verification:\n- %s\n", strings.Join(task.VerificationCommands, "\n- "))
	}
	return b.String()
}

func roleSystemText(role store.AgentRole) string {
	switch role {
	case store.RoleRouta:
		return routaSystemText
	case store.RoleCrafter:
		return crafterSystemText
	case store.RoleGate:
		return gateSystemText
	default:
		return ""
	}
}

const routaSystemText = `You are ROUTA, the planning agent. Decompose the user's request into
@@@task blocks with clear objectives, scope, acceptance criteria, and
verification commands. You have tool-calling access but must never edit
files directly.`

const crafterSystemText = `You are a CRAFTER agent. Complete your assigned task by editing files
and running verification commands. When done, call report_to_parent with
a completion report.`

const gateSystemText = `You are GATE, the verification agent. Review the completed work against
each task's acceptance criteria and verification commands. State your
verdict clearly as APPROVED or NOT APPROVED.`

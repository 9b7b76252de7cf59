// Package tools implements the Agent Tool Surface: the only legitimate
// way to mutate stores from inside an agent's execution. Every mutating
// tool holds a single tools-level lock across its status transition and
// event emission, so observers on the bus never see an intermediate
// state. This is safe because the subscription service's bus handler
// never calls back into a Tools method.
package tools

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/routa-dev/routa/internal/event"
	"github.com/routa-dev/routa/internal/store"
	"github.com/routa-dev/routa/internal/subscription"
)

// ToolResult is the uniform return shape for every tool.
type ToolResult struct {
	Success bool
	Data    any
	Error   string
}

func ok(data any) ToolResult    { return ToolResult{Success: true, Data: data} }
func fail(err error) ToolResult { return ToolResult{Success: false, Error: err.Error()} }

func failMsg(format string, a ...any) ToolResult {
	return ToolResult{Success: false, Error: fmt.Sprintf(format, a...)}
}

// Tools wires the three stores, the event bus, and the subscription
// service into the operations agents call during their execution.
type Tools struct {
	mu sync.Mutex

	Agents        store.AgentStore
	Tasks         store.TaskStore
	Conversations store.ConversationStore
	Bus           *event.Bus
	Subscriptions *subscription.Service
}

// New wires a Tools surface from its five collaborators.
func New(agents store.AgentStore, tasks store.TaskStore, conversations store.ConversationStore, bus *event.Bus, subs *subscription.Service) *Tools {
	return &Tools{
		Agents:        agents,
		Tasks:         tasks,
		Conversations: conversations,
		Bus:           bus,
		Subscriptions: subs,
	}
}

// ListAgents returns every agent in a workspace as a table, id/name/role/status.
func (t *Tools) ListAgents(workspaceID string) ToolResult {
	agents := t.Agents.ListByWorkspace(workspaceID)

	type row struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Role   string `json:"role"`
		Status string `json:"status"`
	}
	rows := make([]row, 0, len(agents))
	for _, a := range agents {
		rows = append(rows, row{ID: a.ID, Name: a.Name, Role: string(a.Role), Status: string(a.Status)})
	}
	return ok(rows)
}

// GetAgentStatus returns an agent's current status and role.
func (t *Tools) GetAgentStatus(agentID string) ToolResult {
	a, err := t.Agents.Get(agentID)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]string{"role": string(a.Role), "status": string(a.Status)})
}

// GetAgentSummary returns role, status, assigned task title, and a digest
// of the last 5 conversation messages.
func (t *Tools) GetAgentSummary(agentID string) ToolResult {
	a, err := t.Agents.Get(agentID)
	if err != nil {
		return fail(err)
	}

	var taskTitle string
	for _, task := range t.Tasks.ListByAssignee(agentID) {
		if !task.Status.IsTerminal() {
			taskTitle = task.Title
			break
		}
	}

	tail := t.Conversations.GetLastN(agentID, 5)
	digest := make([]string, 0, len(tail))
	for _, m := range tail {
		digest = append(digest, fmt.Sprintf("[%s] %s", m.Role, truncate(m.Content, 120)))
	}

	return ok(map[string]any{
		"role":              string(a.Role),
		"status":            string(a.Status),
		"assignedTaskTitle": taskTitle,
		"recentMessages":    digest,
	})
}

// ReadAgentConversation returns an agent's conversation as text, optionally
// scoped to [fromTurn, toTurn].
func (t *Tools) ReadAgentConversation(agentID string, fromTurn, toTurn int) ToolResult {
	if _, err := t.Agents.Get(agentID); err != nil {
		return fail(err)
	}

	var msgs []store.Message
	if fromTurn == 0 && toTurn == 0 {
		msgs = t.Conversations.GetConversation(agentID)
	} else {
		msgs = t.Conversations.GetByTurnRange(agentID, fromTurn, toTurn)
	}

	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	return ok(b.String())
}

// CreateAgent creates a PENDING agent, transitions it to ACTIVE, and
// emits AgentCreated + AgentStatusChanged. Enforces exactly one ROUTA per
// workspace.
func (t *Tools) CreateAgent(workspaceID string, role store.AgentRole, name, parentID string, modelTier store.ModelTier) ToolResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if role == store.RoleRouta && len(t.Agents.ListByRole(workspaceID, store.RoleRouta)) > 0 {
		return failMsg("workspace %q already has a ROUTA agent", workspaceID)
	}

	if modelTier == "" {
		modelTier = store.TierSmart
	}
	if name == "" {
		name = defaultAgentName(role)
	}

	now := time.Now()
	agent := store.Agent{
		ID:          uuid.NewString(),
		Name:        name,
		Role:        role,
		ModelTier:   modelTier,
		WorkspaceID: workspaceID,
		ParentID:    parentID,
		Status:      store.AgentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Agents.Save(agent); err != nil {
		return fail(err)
	}
	t.Bus.Emit(event.NewAgentCreatedEvent(agent.ID, workspaceID, parentID, string(role)))

	if err := t.Agents.UpdateStatus(agent.ID, store.AgentPending, store.AgentActive); err != nil {
		return fail(err)
	}
	t.Bus.Emit(event.NewAgentStatusChangedEvent(agent.ID, string(store.AgentPending), string(store.AgentActive)))

	return ok(map[string]string{"agentId": agent.ID})
}

// DelegateTask assigns a ready, PENDING task to an agent and transitions
// it to IN_PROGRESS.
func (t *Tools) DelegateTask(taskID, agentID, delegatedBy string) ToolResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, err := t.Tasks.Get(taskID)
	if err != nil {
		return fail(err)
	}
	if task.Status != store.TaskPending {
		return failMsg("task %q is not PENDING (status=%s)", taskID, task.Status)
	}
	if !dependenciesSatisfied(task, t.Tasks) {
		return failMsg("task %q is not ready: unresolved dependencies", taskID)
	}

	task.AssignedTo = agentID
	task.Status = store.TaskInProgress
	task.UpdatedAt = time.Now()
	if err := t.Tasks.Save(task); err != nil {
		return fail(err)
	}

	t.Bus.Emit(event.NewTaskDelegatedEvent(taskID, agentID, delegatedBy))
	t.Bus.Emit(event.NewTaskStatusChangedEvent(taskID, string(store.TaskPending), string(store.TaskInProgress)))

	brief := formatTaskBrief(task)
	t.Conversations.Append(store.Message{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Role:      store.MessageRoleSystem,
		Content:   brief,
		Timestamp: time.Now(),
	})

	return ok(map[string]string{"taskId": taskID, "agentId": agentID})
}

// SendMessageToAgent appends a message to the recipient's conversation and
// emits MessageReceived.
func (t *Tools) SendMessageToAgent(fromID, toID, content string) ToolResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.Agents.Get(fromID); err != nil {
		return fail(err)
	}
	if _, err := t.Agents.Get(toID); err != nil {
		return fail(err)
	}

	if err := t.Conversations.Append(store.Message{
		ID:          uuid.NewString(),
		AgentID:     toID,
		Role:        store.MessageRoleAgent,
		Content:     content,
		FromAgentID: fromID,
		Timestamp:   time.Now(),
	}); err != nil {
		return fail(err)
	}

	t.Bus.Emit(event.NewMessageReceivedEvent(fromID, toID, content))
	return ok(nil)
}

// WaitForAgent (aka subscribe_to_events) delegates to the subscription
// service and returns the new subscription id.
func (t *Tools) WaitForAgent(callerID, targetID string, eventTypes []string, oneShot bool) ToolResult {
	if targetID != "" {
		id := t.Subscriptions.SubscribeToAgentCompletion(callerID, targetID)
		return ok(map[string]string{"subscriptionId": id})
	}
	id := t.Subscriptions.Subscribe(callerID, "", eventTypes, true, oneShot)
	return ok(map[string]string{"subscriptionId": id})
}

// UnsubscribeFromEvents removes a subscription.
func (t *Tools) UnsubscribeFromEvents(subscriptionID string) ToolResult {
	return ok(t.Subscriptions.Unsubscribe(subscriptionID))
}

// ReportToParent transitions the reporter to COMPLETED, its task to
// REVIEW_REQUIRED, and appends a completion report message to the
// parent's conversation.
func (t *Tools) ReportToParent(report store.CompletionReport) ToolResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	reporter, err := t.Agents.Get(report.AgentID)
	if err != nil {
		return fail(err)
	}
	if reporter.Status != store.AgentActive {
		return failMsg("agent %q is not ACTIVE (status=%s)", report.AgentID, reporter.Status)
	}

	task, err := t.Tasks.Get(report.TaskID)
	if err != nil {
		return fail(err)
	}
	if task.Status != store.TaskInProgress {
		return failMsg("task %q is not IN_PROGRESS (status=%s)", report.TaskID, task.Status)
	}

	if err := t.Agents.UpdateStatus(report.AgentID, store.AgentActive, store.AgentCompleted); err != nil {
		return fail(err)
	}
	t.Bus.Emit(event.NewAgentStatusChangedEvent(report.AgentID, string(store.AgentActive), string(store.AgentCompleted)))

	verdict := ""
	if report.Success {
		verdict = string(store.VerdictApproved)
	}
	t.Bus.Emit(event.NewAgentCompletedEvent(report.AgentID, reporter.ParentID, report.Summary, verdict))

	task.Status = store.TaskReviewRequired
	task.CompletionSummary = report.Summary
	task.UpdatedAt = time.Now()
	if err := t.Tasks.Save(task); err != nil {
		return fail(err)
	}
	t.Bus.Emit(event.NewTaskStatusChangedEvent(report.TaskID, string(store.TaskInProgress), string(store.TaskReviewRequired)))

	if reporter.ParentID != "" {
		t.Conversations.Append(store.Message{
			ID:          uuid.NewString(),
			AgentID:     reporter.ParentID,
			Role:        store.MessageRoleAgent,
			Content:     formatCompletionReport(report),
			FromAgentID: report.AgentID,
			Timestamp:   time.Now(),
		})
	}

	return ok(nil)
}

// WakeOrCreateTaskAgent finds an existing ACTIVE CRAFTER assigned to
// taskID, otherwise creates one, parented under parentID, and delegates the
// task to it. A CRAFTER previously assigned to this task that ended in
// ERROR is never reused; a fresh one is created and the task is
// redelegated.
func (t *Tools) WakeOrCreateTaskAgent(workspaceID, taskID, parentID, name string) ToolResult {
	for _, a := range t.Agents.ListByRole(workspaceID, store.RoleCrafter) {
		if a.Status != store.AgentActive {
			continue
		}
		for _, task := range t.Tasks.ListByAssignee(a.ID) {
			if task.ID == taskID {
				return ok(map[string]string{"agentId": a.ID, "created": "false"})
			}
		}
	}

	created := t.CreateAgent(workspaceID, store.RoleCrafter, name, parentID, store.TierFast)
	if !created.Success {
		return created
	}
	agentID := created.Data.(map[string]string)["agentId"]

	delegated := t.DelegateTask(taskID, agentID, agentID)
	if !delegated.Success {
		return delegated
	}
	return ok(map[string]string{"agentId": agentID, "created": "true"})
}

func dependenciesSatisfied(task store.Task, tasks store.TaskStore) bool {
	for _, depID := range task.Dependencies {
		dep, err := tasks.Get(depID)
		if err != nil || dep.Status != store.TaskCompleted {
			return false
		}
	}
	return true
}

func formatTaskBrief(task store.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\nObjective:\n%s\n\n", task.Title, task.Objective)
	if len(task.Scope) > 0 {
		fmt.Fprintf(&b, "Scope:\n- %s\n\n", strings.Join(task.Scope, "\n- "))
	}
	if len(task.AcceptanceCriteria) > 0 {
		fmt.Fprintf(&b, "Definition of Done:\n- %s\n\n", strings.Join(task.AcceptanceCriteria, "\n- "))
	}
	if len(task.VerificationCommands) > 0 {
		fmt.Fprintf(&b, "Verification:\n- %s\n", strings.Join(task.VerificationCommands, "\n- "))
	}
	return b.String()
}

func formatCompletionReport(report store.CompletionReport) string {
	var b strings.Builder
	b.WriteString("Completion Report\n\n")
	fmt.Fprintf(&b, "Summary: %s\n", report.Summary)
	if len(report.FilesModified) > 0 {
		fmt.Fprintf(&b, "Files modified: %s\n", strings.Join(report.FilesModified, ", "))
	}
	fmt.Fprintf(&b, "Success: %v\n", report.Success)
	return b.String()
}

func defaultAgentName(role store.AgentRole) string {
	switch role {
	case store.RoleRouta:
		return "routa"
	case store.RoleGate:
		return "gate"
	default:
		return "crafter"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package mcpserver exposes the Agent Tool Surface (list_agents,
// create_agent, delegate_task, send_message_to_agent, wait_for_agent,
// report_to_parent, read_agent_conversation, wake_or_create_task_agent)
// over the Model Context Protocol, so a real LLM client can drive a
// workspace's tools instead of calling internal/tools.Tools in-process.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsdk "github.com/mark3labs/mcp-go/server"
	"github.com/routa-dev/routa/internal/store"
	"github.com/routa-dev/routa/internal/tools"
)

// Version is the MCP server's advertised version.
const Version = "0.1.0"

// New builds an MCP server backed by tl, with every Agent Tool Surface
// operation registered as an MCP tool.
func New(tl *tools.Tools) *mcpsdk.MCPServer {
	s := mcpsdk.NewMCPServer(
		"routa",
		Version,
		mcpsdk.WithToolCapabilities(true),
		mcpsdk.WithRecovery(),
	)

	reg := &registrar{tl: tl}
	reg.register(s)
	return s
}

type registrar struct {
	tl *tools.Tools
}

func (r *registrar) register(s *mcpsdk.MCPServer) {
	s.AddTool(mcplib.NewTool("list_agents",
		mcplib.WithDescription("List every agent in a workspace"),
		mcplib.WithString("workspace_id", mcplib.Required()),
	), r.handleListAgents)

	s.AddTool(mcplib.NewTool("get_agent_status",
		mcplib.WithDescription("Get a single agent's current status"),
		mcplib.WithString("agent_id", mcplib.Required()),
	), r.handleGetAgentStatus)

	s.AddTool(mcplib.NewTool("get_agent_summary",
		mcplib.WithDescription("Get a completed agent's completion summary"),
		mcplib.WithString("agent_id", mcplib.Required()),
	), r.handleGetAgentSummary)

	s.AddTool(mcplib.NewTool("read_agent_conversation",
		mcplib.WithDescription("Read an agent's full conversation transcript"),
		mcplib.WithString("agent_id", mcplib.Required()),
	), r.handleReadAgentConversation)

	s.AddTool(mcplib.NewTool("create_agent",
		mcplib.WithDescription("Create a new agent in a workspace"),
		mcplib.WithString("workspace_id", mcplib.Required()),
		mcplib.WithString("role", mcplib.Required(), mcplib.Description("ROUTA, CRAFTER, or GATE")),
		mcplib.WithString("name", mcplib.Required()),
		mcplib.WithString("parent_id"),
		mcplib.WithString("model_tier", mcplib.Description("SMART or FAST")),
	), r.handleCreateAgent)

	s.AddTool(mcplib.NewTool("delegate_task",
		mcplib.WithDescription("Assign a task to an agent"),
		mcplib.WithString("task_id", mcplib.Required()),
		mcplib.WithString("agent_id", mcplib.Required()),
		mcplib.WithString("delegated_by", mcplib.Required()),
	), r.handleDelegateTask)

	s.AddTool(mcplib.NewTool("send_message_to_agent",
		mcplib.WithDescription("Append a message to an agent's conversation"),
		mcplib.WithString("from_agent_id", mcplib.Required()),
		mcplib.WithString("to_agent_id", mcplib.Required()),
		mcplib.WithString("content", mcplib.Required()),
	), r.handleSendMessage)

	s.AddTool(mcplib.NewTool("report_to_parent",
		mcplib.WithDescription("Report a task's completion to its delegating agent"),
		mcplib.WithString("agent_id", mcplib.Required()),
		mcplib.WithString("task_id", mcplib.Required()),
		mcplib.WithString("summary", mcplib.Required()),
		mcplib.WithBoolean("success", mcplib.Required()),
	), r.handleReportToParent)

	s.AddTool(mcplib.NewTool("wait_for_agent",
		mcplib.WithDescription("Subscribe the caller to another agent's completion or a set of event types"),
		mcplib.WithString("caller_id", mcplib.Required()),
		mcplib.WithString("target_id", mcplib.Description("agent to wait on; omit to subscribe by event_types instead")),
		mcplib.WithString("event_types", mcplib.Description("comma-separated event types, used when target_id is omitted")),
		mcplib.WithBoolean("one_shot", mcplib.Description("unsubscribe automatically after the first matching event")),
	), r.handleWaitForAgent)

	s.AddTool(mcplib.NewTool("unsubscribe_from_events",
		mcplib.WithDescription("Cancel a subscription created by wait_for_agent"),
		mcplib.WithString("subscription_id", mcplib.Required()),
	), r.handleUnsubscribeFromEvents)

	s.AddTool(mcplib.NewTool("wake_or_create_task_agent",
		mcplib.WithDescription("Reuse the ACTIVE CRAFTER already assigned to a task, or create one and delegate the task to it"),
		mcplib.WithString("workspace_id", mcplib.Required()),
		mcplib.WithString("task_id", mcplib.Required()),
		mcplib.WithString("parent_id", mcplib.Required(), mcplib.Description("agent id of the CRAFTER's parent, same as create_agent")),
		mcplib.WithString("name", mcplib.Required()),
	), r.handleWakeOrCreateTaskAgent)
}

func textResult(v any) *mcplib.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("marshal result", err)
	}
	return mcplib.NewToolResultText(string(data))
}

func toolResult(res tools.ToolResult) *mcplib.CallToolResult {
	if !res.Success {
		return mcplib.NewToolResultError(res.Error)
	}
	return textResult(res.Data)
}

func arg(req mcplib.CallToolRequest, name string) string {
	v, _ := req.GetArguments()[name].(string)
	return v
}

func (r *registrar) handleListAgents(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return toolResult(r.tl.ListAgents(arg(req, "workspace_id"))), nil
}

func (r *registrar) handleGetAgentStatus(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return toolResult(r.tl.GetAgentStatus(arg(req, "agent_id"))), nil
}

func (r *registrar) handleGetAgentSummary(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return toolResult(r.tl.GetAgentSummary(arg(req, "agent_id"))), nil
}

func (r *registrar) handleReadAgentConversation(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return toolResult(r.tl.ReadAgentConversation(arg(req, "agent_id"), 0, 0)), nil
}

func (r *registrar) handleCreateAgent(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	tier := store.ModelTier(arg(req, "model_tier"))
	if tier == "" {
		tier = store.TierFast
	}
	res := r.tl.CreateAgent(arg(req, "workspace_id"), store.AgentRole(arg(req, "role")), arg(req, "name"), arg(req, "parent_id"), tier)
	return toolResult(res), nil
}

func (r *registrar) handleDelegateTask(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	res := r.tl.DelegateTask(arg(req, "task_id"), arg(req, "agent_id"), arg(req, "delegated_by"))
	return toolResult(res), nil
}

func (r *registrar) handleSendMessage(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	res := r.tl.SendMessageToAgent(arg(req, "from_agent_id"), arg(req, "to_agent_id"), arg(req, "content"))
	return toolResult(res), nil
}

func (r *registrar) handleReportToParent(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	success, _ := req.GetArguments()["success"].(bool)
	res := r.tl.ReportToParent(store.CompletionReport{
		AgentID: arg(req, "agent_id"),
		TaskID:  arg(req, "task_id"),
		Summary: arg(req, "summary"),
		Success: success,
	})
	return toolResult(res), nil
}

func (r *registrar) handleWaitForAgent(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	oneShot, _ := req.GetArguments()["one_shot"].(bool)
	var eventTypes []string
	if raw := arg(req, "event_types"); raw != "" {
		eventTypes = strings.Split(raw, ",")
	}
	res := r.tl.WaitForAgent(arg(req, "caller_id"), arg(req, "target_id"), eventTypes, oneShot)
	return toolResult(res), nil
}

func (r *registrar) handleUnsubscribeFromEvents(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return toolResult(r.tl.UnsubscribeFromEvents(arg(req, "subscription_id"))), nil
}

func (r *registrar) handleWakeOrCreateTaskAgent(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	res := r.tl.WakeOrCreateTaskAgent(arg(req, "workspace_id"), arg(req, "task_id"), arg(req, "parent_id"), arg(req, "name"))
	return toolResult(res), nil
}

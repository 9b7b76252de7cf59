// Package provider defines the language-neutral contract an LLM backend
// implements to run ROUTA, CRAFTER, and GATE agents, plus the routing and
// resilience wrappers the coordinator uses around it.
package provider

import (
	"context"

	"github.com/routa-dev/routa/internal/store"
)

// StreamChunkKind tags the variant of a StreamChunk.
type StreamChunkKind string

const (
	ChunkText             StreamChunkKind = "text"
	ChunkThinking         StreamChunkKind = "thinking"
	ChunkToolCall         StreamChunkKind = "tool_call"
	ChunkError            StreamChunkKind = "error"
	ChunkCompleted        StreamChunkKind = "completed"
	ChunkCompletionReport StreamChunkKind = "completion_report"
)

// StreamChunk is one unit of a streaming provider's incremental output.
type StreamChunk struct {
	Kind       StreamChunkKind
	Content    string
	Phase      string // set for ChunkThinking
	ToolName   string // set for ChunkToolCall
	ToolStatus string // set for ChunkToolCall
	ToolArgs   string // set for ChunkToolCall, raw JSON
	Message    string // set for ChunkError
	StopReason string // set for ChunkCompleted
	Report     *store.CompletionReport
}

// Capabilities describes what a provider can do, used by the router to
// match providers to roles.
type Capabilities struct {
	Name                string
	SupportsStreaming   bool
	SupportsFileEditing bool
	SupportsTerminal    bool
	SupportsToolCalling bool
	Priority            int
}

// Provider runs an agent turn and returns its accumulated text output.
// Implementations may additionally support streaming and interruption.
type Provider interface {
	Run(ctx context.Context, role store.AgentRole, agentID, prompt string) (string, error)
	Capabilities() Capabilities
}

// StreamingProvider is implemented by providers that can deliver
// incremental StreamChunk values as they run.
type StreamingProvider interface {
	Provider
	RunStreaming(ctx context.Context, role store.AgentRole, agentID, prompt string, onChunk func(StreamChunk)) (string, error)
}

// InterruptibleProvider is implemented by providers that support
// targeted cancellation of an in-flight run for a specific agent.
type InterruptibleProvider interface {
	Provider
	Interrupt(agentID string) error
}

package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	routaerrors "github.com/routa-dev/routa/internal/errors"
	"github.com/routa-dev/routa/internal/store"
)

// ResilientAgentProvider wraps another provider so that a failure never
// propagates as an error to the coordinator: it is recorded as a system
// message in the failing agent's conversation and surfaced as a
// synthetic "[provider error: ...]" string, so a GATE run on a failed
// CRAFTER still renders as NOT_APPROVED text rather than crashing the
// wave.
type ResilientAgentProvider struct {
	inner         Provider
	conversations store.ConversationStore
	timeout       time.Duration
}

// NewResilientAgentProvider wraps inner with a per-run timeout (default
// 5 minutes when timeout is zero) and failure recording into
// conversations.
func NewResilientAgentProvider(inner Provider, conversations store.ConversationStore, timeout time.Duration) *ResilientAgentProvider {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ResilientAgentProvider{inner: inner, conversations: conversations, timeout: timeout}
}

// Run never returns an error: on failure or timeout it records the
// failure and returns a synthetic error string instead.
func (p *ResilientAgentProvider) Run(ctx context.Context, role store.AgentRole, agentID, prompt string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, err := p.inner.Run(runCtx, role, agentID, prompt)
	if err == nil {
		return text, nil
	}

	if runCtx.Err() != nil {
		err = routaerrors.NewTimeoutError(fmt.Sprintf("provider run for %s", agentID), p.timeout)
	}

	synthetic := fmt.Sprintf("[provider error: %v]", err)
	p.recordFailure(agentID, synthetic)
	return synthetic, nil
}

func (p *ResilientAgentProvider) recordFailure(agentID, message string) {
	if p.conversations == nil {
		return
	}
	p.conversations.Append(store.Message{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Role:      store.MessageRoleSystem,
		Content:   message,
		Timestamp: time.Now(),
	})
}

// Capabilities passes through the wrapped provider's capabilities.
func (p *ResilientAgentProvider) Capabilities() Capabilities {
	return p.inner.Capabilities()
}

// Interrupt forwards to the wrapped provider if it supports interruption.
func (p *ResilientAgentProvider) Interrupt(agentID string) error {
	if interruptible, ok := p.inner.(InterruptibleProvider); ok {
		return interruptible.Interrupt(agentID)
	}
	return nil
}

package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/routa-dev/routa/internal/store"
)

// MockProvider is a deterministic in-memory Provider for tests: it
// returns a scripted response per role, or a default template when none
// is scripted, and records every call it received.
type MockProvider struct {
	mu        sync.Mutex
	responses map[store.AgentRole]string
	calls     []MockCall
	caps      Capabilities
}

// MockCall records one Run invocation against a MockProvider.
type MockCall struct {
	Role    store.AgentRole
	AgentID string
	Prompt  string
}

// NewMockProvider creates a MockProvider whose Capabilities report
// support for every role's needs, so it satisfies the router's
// requirements for ROUTA, CRAFTER, and GATE alike.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		responses: make(map[store.AgentRole]string),
		caps: Capabilities{
			Name:                "mock",
			SupportsToolCalling: true,
			SupportsFileEditing: true,
			SupportsTerminal:    true,
			Priority:            0,
		},
	}
}

// SetResponse scripts the text returned for every Run call with the
// given role.
func (m *MockProvider) SetResponse(role store.AgentRole, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[role] = text
}

// Run returns the scripted response for role, or a default acknowledgment.
func (m *MockProvider) Run(_ context.Context, role store.AgentRole, agentID, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Role: role, AgentID: agentID, Prompt: prompt})

	if text, ok := m.responses[role]; ok {
		return text, nil
	}
	return fmt.Sprintf("mock response for %s (%s)", role, agentID), nil
}

// Capabilities returns the mock's fixed capability set.
func (m *MockProvider) Capabilities() Capabilities {
	return m.caps
}

// Calls returns every Run invocation received so far, in order.
func (m *MockProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

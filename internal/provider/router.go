package provider

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/routa-dev/routa/internal/store"
)

// roleRequirement describes what a role needs from a provider's capabilities.
type roleRequirement struct {
	needsToolCalling bool
	forbidsFileEdits bool
	needsFileEditing bool
	needsTerminal    bool
}

func requirementFor(role store.AgentRole) roleRequirement {
	switch role {
	case store.RoleRouta:
		return roleRequirement{needsToolCalling: true, forbidsFileEdits: true}
	case store.RoleCrafter:
		return roleRequirement{needsFileEditing: true, needsTerminal: true}
	case store.RoleGate:
		return roleRequirement{needsToolCalling: true}
	default:
		return roleRequirement{}
	}
}

func (r roleRequirement) satisfiedBy(c Capabilities) bool {
	if r.needsToolCalling && !c.SupportsToolCalling {
		return false
	}
	if r.forbidsFileEdits && c.SupportsFileEditing {
		return false
	}
	if r.needsFileEditing && !c.SupportsFileEditing {
		return false
	}
	if r.needsTerminal && !c.SupportsTerminal {
		return false
	}
	return true
}

// CapabilityBasedRouter holds an ordered list of providers and, for each
// run, picks the highest-priority provider whose capabilities best match
// the calling role's needs. If none match, it falls back to the first
// provider registered.
type CapabilityBasedRouter struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewCapabilityBasedRouter creates a router over the given providers, in
// registration order.
func NewCapabilityBasedRouter(providers ...Provider) *CapabilityBasedRouter {
	return &CapabilityBasedRouter{providers: providers}
}

// Register appends a provider to the router's candidate list.
func (r *CapabilityBasedRouter) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// Select returns the provider this router would use for role.
func (r *CapabilityBasedRouter) Select(role store.AgentRole) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return nil, errors.New("provider: no providers registered")
	}

	req := requirementFor(role)
	candidates := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if req.satisfiedBy(p.Capabilities()) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return r.providers[0], nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Capabilities().Priority > candidates[j].Capabilities().Priority
	})
	return candidates[0], nil
}

// Run selects a provider for role and runs it.
func (r *CapabilityBasedRouter) Run(ctx context.Context, role store.AgentRole, agentID, prompt string) (string, error) {
	p, err := r.Select(role)
	if err != nil {
		return "", err
	}
	return p.Run(ctx, role, agentID, prompt)
}

// Capabilities reports the router's own capabilities as the union of
// its registered providers, used when the router itself is wrapped as a
// Provider (e.g. by ResilientAgentProvider).
func (r *CapabilityBasedRouter) Capabilities() Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := Capabilities{Name: "capability-router"}
	for _, p := range r.providers {
		pc := p.Capabilities()
		c.SupportsStreaming = c.SupportsStreaming || pc.SupportsStreaming
		c.SupportsFileEditing = c.SupportsFileEditing || pc.SupportsFileEditing
		c.SupportsTerminal = c.SupportsTerminal || pc.SupportsTerminal
		c.SupportsToolCalling = c.SupportsToolCalling || pc.SupportsToolCalling
	}
	return c
}

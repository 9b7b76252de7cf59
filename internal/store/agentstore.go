package store

import (
	"sort"
	"sync"

	routaerrors "github.com/routa-dev/routa/internal/errors"
)

// AgentStore holds Agent records for a session. All operations are
// concurrency-safe; UpdateStatus is an atomic compare-and-set against the
// agent's current status.
type AgentStore interface {
	Save(agent Agent) error
	Get(id string) (Agent, error)
	ListByWorkspace(workspaceID string) []Agent
	ListByParent(parentID string) []Agent
	ListByRole(workspaceID string, role AgentRole) []Agent
	ListByStatus(workspaceID string, status AgentStatus) []Agent
	UpdateStatus(id string, from, to AgentStatus) error
}

// InMemoryAgentStore is the reference AgentStore backend: a map guarded by
// a single mutex for compound mutations, mirroring the dependency-gated
// task queue's locking discipline.
type InMemoryAgentStore struct {
	mu     sync.Mutex
	agents map[string]Agent
}

// NewInMemoryAgentStore creates an empty AgentStore.
func NewInMemoryAgentStore() *InMemoryAgentStore {
	return &InMemoryAgentStore{agents: make(map[string]Agent)}
}

// Save inserts or overwrites an Agent record. Callers that create a new
// ROUTA must check ListByRole themselves; Save does not enforce the
// exactly-one-ROUTA invariant since that check spans a create decision,
// not a store write.
func (s *InMemoryAgentStore) Save(agent Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = agent
	return nil
}

// Get returns the agent with the given id, or NotFoundError.
func (s *InMemoryAgentStore) Get(id string) (Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return Agent{}, routaerrors.NewNotFoundError("agent", id)
	}
	return a, nil
}

// ListByWorkspace returns every agent in a workspace, ordered by CreatedAt.
func (s *InMemoryAgentStore) ListByWorkspace(workspaceID string) []Agent {
	return s.filter(func(a Agent) bool { return a.WorkspaceID == workspaceID })
}

// ListByParent returns every agent whose ParentID matches.
func (s *InMemoryAgentStore) ListByParent(parentID string) []Agent {
	return s.filter(func(a Agent) bool { return a.ParentID == parentID })
}

// ListByRole returns every agent in a workspace with the given role.
func (s *InMemoryAgentStore) ListByRole(workspaceID string, role AgentRole) []Agent {
	return s.filter(func(a Agent) bool { return a.WorkspaceID == workspaceID && a.Role == role })
}

// ListByStatus returns every agent in a workspace with the given status.
func (s *InMemoryAgentStore) ListByStatus(workspaceID string, status AgentStatus) []Agent {
	return s.filter(func(a Agent) bool { return a.WorkspaceID == workspaceID && a.Status == status })
}

func (s *InMemoryAgentStore) filter(pred func(Agent) bool) []Agent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Agent
	for _, a := range s.agents {
		if pred(a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

// UpdateStatus atomically transitions an agent from `from` to `to`. It
// fails with IllegalTransitionError if the agent's current status does
// not match `from`, which keeps the compare-and-set atomic with respect to
// concurrent callers racing the same transition.
func (s *InMemoryAgentStore) UpdateStatus(id string, from, to AgentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[id]
	if !ok {
		return routaerrors.NewNotFoundError("agent", id)
	}
	if a.Status != from {
		return routaerrors.NewIllegalTransitionError("agent", string(a.Status), string(to))
	}
	a.Status = to
	s.agents[id] = a
	return nil
}


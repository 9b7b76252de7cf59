package store

import (
	"sync"

	routaerrors "github.com/routa-dev/routa/internal/errors"
)

// ConversationStore holds each agent's append-only Message transcript.
type ConversationStore interface {
	Append(msg Message) error
	GetConversation(agentID string) []Message
	GetLastN(agentID string, n int) []Message
	GetByTurnRange(agentID string, fromTurn, toTurn int) []Message
	GetMessageCount(agentID string) int
	DeleteConversation(agentID string) error
}

// InMemoryConversationStore is the reference ConversationStore backend: one
// insertion-ordered slice per agent, guarded by a single mutex.
type InMemoryConversationStore struct {
	mu            sync.Mutex
	conversations map[string][]Message
}

// NewInMemoryConversationStore creates an empty ConversationStore.
func NewInMemoryConversationStore() *InMemoryConversationStore {
	return &InMemoryConversationStore{conversations: make(map[string][]Message)}
}

// Append adds a message to the end of its owning agent's transcript.
func (s *InMemoryConversationStore) Append(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[msg.AgentID] = append(s.conversations[msg.AgentID], msg)
	return nil
}

// GetConversation returns the full transcript for an agent, oldest first.
func (s *InMemoryConversationStore) GetConversation(agentID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.conversations[agentID])
}

// GetLastN returns the last n messages of an agent's transcript, oldest
// first. If the transcript has fewer than n messages, all of them are
// returned.
func (s *InMemoryConversationStore) GetLastN(agentID string, n int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.conversations[agentID]
	if n <= 0 || len(all) == 0 {
		return nil
	}
	if n >= len(all) {
		return cloneMessages(all)
	}
	return cloneMessages(all[len(all)-n:])
}

// GetByTurnRange returns the messages with Turn in [fromTurn, toTurn].
func (s *InMemoryConversationStore) GetByTurnRange(agentID string, fromTurn, toTurn int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Message
	for _, m := range s.conversations[agentID] {
		if m.Turn >= fromTurn && m.Turn <= toTurn {
			result = append(result, m)
		}
	}
	return result
}

// GetMessageCount returns the number of messages in an agent's transcript.
func (s *InMemoryConversationStore) GetMessageCount(agentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations[agentID])
}

// DeleteConversation removes an agent's transcript entirely.
func (s *InMemoryConversationStore) DeleteConversation(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[agentID]; !ok {
		return routaerrors.NewNotFoundError("conversation", agentID)
	}
	delete(s.conversations, agentID)
	return nil
}

func cloneMessages(msgs []Message) []Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

package store

import (
	"sort"
	"sync"

	routaerrors "github.com/routa-dev/routa/internal/errors"
)

// TaskStore holds Task records for a session.
type TaskStore interface {
	Save(task Task) error
	Get(id string) (Task, error)
	ListByWorkspace(workspaceID string) []Task
	ListByAssignee(agentID string) []Task
	ListByStatus(workspaceID string, status TaskStatus) []Task
	UpdateStatus(id string, from, to TaskStatus) error
	// FindReadyTasks returns tasks whose status is PENDING and whose every
	// dependency is COMPLETED. It is a read against the current snapshot
	// and does not need to hold a lock across the whole scan.
	FindReadyTasks(workspaceID string) []Task
	// Snapshot returns a point-in-time count of a workspace's tasks by
	// status, the basis for the queue depth surfaced over HTTP.
	Snapshot(workspaceID string) QueueDepth
}

// QueueDepth is a point-in-time count of a workspace's tasks by status.
type QueueDepth struct {
	Pending        int
	InProgress     int
	ReviewRequired int
	Completed      int
	NeedsFix       int
	Blocked        int
	Cancelled      int
	Total          int
}

// InMemoryTaskStore is the reference TaskStore backend.
type InMemoryTaskStore struct {
	mu    sync.Mutex
	tasks map[string]Task
}

// NewInMemoryTaskStore creates an empty TaskStore.
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{tasks: make(map[string]Task)}
}

// Save inserts or overwrites a Task record.
func (s *InMemoryTaskStore) Save(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return nil
}

// Get returns the task with the given id, or NotFoundError.
func (s *InMemoryTaskStore) Get(id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, routaerrors.NewNotFoundError("task", id)
	}
	return t, nil
}

// ListByWorkspace returns every task in a workspace, ordered by CreatedAt.
func (s *InMemoryTaskStore) ListByWorkspace(workspaceID string) []Task {
	return s.filter(func(t Task) bool { return t.WorkspaceID == workspaceID })
}

// ListByAssignee returns every task currently assigned to the given agent.
func (s *InMemoryTaskStore) ListByAssignee(agentID string) []Task {
	return s.filter(func(t Task) bool { return t.AssignedTo == agentID })
}

// ListByStatus returns every task in a workspace with the given status.
func (s *InMemoryTaskStore) ListByStatus(workspaceID string, status TaskStatus) []Task {
	return s.filter(func(t Task) bool { return t.WorkspaceID == workspaceID && t.Status == status })
}

func (s *InMemoryTaskStore) filter(pred func(Task) bool) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Task
	for _, t := range s.tasks {
		if pred(t) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

// UpdateStatus atomically transitions a task from `from` to `to`.
func (s *InMemoryTaskStore) UpdateStatus(id string, from, to TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return routaerrors.NewNotFoundError("task", id)
	}
	if t.Status != from {
		return routaerrors.NewIllegalTransitionError("task", string(t.Status), string(to))
	}
	t.Status = to
	s.tasks[id] = t
	return nil
}

// FindReadyTasks returns PENDING tasks every one of whose dependencies is
// COMPLETED. Dependencies that reference an unknown task id are treated as
// unresolved, so the task is not ready.
func (s *InMemoryTaskStore) FindReadyTasks(workspaceID string) []Task {
	s.mu.Lock()
	snapshot := make(map[string]Task, len(s.tasks))
	for id, t := range s.tasks {
		snapshot[id] = t
	}
	s.mu.Unlock()

	var ready []Task
	for _, t := range snapshot {
		if t.WorkspaceID != workspaceID || t.Status != TaskPending {
			continue
		}
		if isReady(t, snapshot) {
			ready = append(ready, t)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].CreatedAt.Before(ready[j].CreatedAt) })
	return ready
}

// Snapshot counts a workspace's tasks by status.
func (s *InMemoryTaskStore) Snapshot(workspaceID string) QueueDepth {
	s.mu.Lock()
	defer s.mu.Unlock()

	var d QueueDepth
	for _, t := range s.tasks {
		if t.WorkspaceID != workspaceID {
			continue
		}
		d.Total++
		switch t.Status {
		case TaskPending:
			d.Pending++
		case TaskInProgress:
			d.InProgress++
		case TaskReviewRequired:
			d.ReviewRequired++
		case TaskCompleted:
			d.Completed++
		case TaskNeedsFix:
			d.NeedsFix++
		case TaskBlocked:
			d.Blocked++
		case TaskCancelled:
			d.Cancelled++
		}
	}
	return d
}

func isReady(t Task, all map[string]Task) bool {
	for _, depID := range t.Dependencies {
		dep, ok := all[depID]
		if !ok || dep.Status != TaskCompleted {
			return false
		}
	}
	return true
}

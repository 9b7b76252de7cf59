// Package httpapi exposes the coordination core over HTTP: workspace
// creation, orchestrator status polling, and SSE delivery of
// OrchestratorPhaseChangedEvent updates, the transport spec.md says routa
// does not own but must support.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/routa-dev/routa/internal/app"
	"github.com/routa-dev/routa/internal/config"
	"github.com/routa-dev/routa/internal/event"
	"github.com/routa-dev/routa/internal/provider"
	"github.com/routa-dev/routa/internal/taskparser"
	"github.com/routa-dev/routa/internal/wsstream"
)

// Manager owns every Session a server process has created and the chi
// router that fronts them. Each workspace gets its own Session per the
// coordination core's no-global-singletons rule.
type Manager struct {
	cfg          *config.Config
	providerFunc func() provider.Provider

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

// NewManager creates a Manager. providerFunc is called once per workspace
// to produce the Provider that workspace's orchestrator runs against.
func NewManager(cfg *config.Config, providerFunc func() provider.Provider) *Manager {
	return &Manager{cfg: cfg, providerFunc: providerFunc, sessions: make(map[string]*app.Session)}
}

// Router builds the chi router for the Manager's endpoints.
func (m *Manager) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/workspaces", func(r chi.Router) {
		r.Post("/", m.handleCreateWorkspace)
		r.Get("/{workspaceID}/status", m.handleStatus)
		r.Get("/{workspaceID}/events", m.handleEvents)
		r.Get("/{workspaceID}/stream", m.handleStream)
		r.Get("/{workspaceID}/plan", m.handlePlanPreview)
	})
	return r
}

// handleStream upgrades to a websocket and forwards the workspace's
// OrchestratorPhaseChangedEvent stream, for IDE/CLI front ends that want a
// persistent connection rather than polling /status or /events.
func (m *Manager) handleStream(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	sess, ok := m.session(workspaceID)
	if !ok {
		http.Error(w, "unknown workspace", http.StatusNotFound)
		return
	}
	h := &wsstream.Handler{Bus: sess.Bus, WorkspaceID: workspaceID}
	h.ServeHTTP(w, r)
}

type createWorkspaceRequest struct {
	Request string `json:"request"`
}

type createWorkspaceResponse struct {
	WorkspaceID string `json:"workspaceId"`
}

func (m *Manager) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Request == "" {
		http.Error(w, "request body must include a non-empty \"request\" field", http.StatusBadRequest)
		return
	}

	workspaceID := uuid.NewString()
	sess := app.New(m.cfg, m.providerFunc())

	m.mu.Lock()
	m.sessions[workspaceID] = sess
	m.mu.Unlock()

	go func() {
		defer sess.Close()
		_, _ = sess.Orchestrator.Run(r.Context(), workspaceID, req.Request)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(createWorkspaceResponse{WorkspaceID: workspaceID})
}

func (m *Manager) session(workspaceID string) (*app.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[workspaceID]
	return s, ok
}

type statusResponse struct {
	Phase string       `json:"phase"`
	Wave  int          `json:"wave"`
	Queue queueSummary `json:"queue"`
}

type queueSummary struct {
	Pending        int `json:"pending"`
	InProgress     int `json:"inProgress"`
	ReviewRequired int `json:"reviewRequired"`
	Completed      int `json:"completed"`
	NeedsFix       int `json:"needsFix"`
	Blocked        int `json:"blocked"`
	Total          int `json:"total"`
}

func (m *Manager) handleStatus(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	sess, ok := m.session(workspaceID)
	if !ok {
		http.Error(w, "unknown workspace", http.StatusNotFound)
		return
	}

	state := sess.Coordinator.State()
	depth := sess.Tasks.Snapshot(workspaceID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{
		Phase: string(state.Phase),
		Wave:  state.CurrentWave,
		Queue: queueSummary{
			Pending:        depth.Pending,
			InProgress:     depth.InProgress,
			ReviewRequired: depth.ReviewRequired,
			Completed:      depth.Completed,
			NeedsFix:       depth.NeedsFix,
			Blocked:        depth.Blocked,
			Total:          depth.Total,
		},
	})
}

type planPreviewResponse struct {
	Tasks []string `json:"tasks"`
}

// handlePlanPreview renders a workspace's registered tasks back into
// `@@@task` block text via taskparser.Render, so a caller can confirm how
// the parsed plan would round-trip without reading raw store state.
func (m *Manager) handlePlanPreview(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	sess, ok := m.session(workspaceID)
	if !ok {
		http.Error(w, "unknown workspace", http.StatusNotFound)
		return
	}

	tasks := sess.Tasks.ListByWorkspace(workspaceID)
	rendered := make([]string, len(tasks))
	for i, t := range tasks {
		rendered[i] = taskparser.Render(t)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(planPreviewResponse{Tasks: rendered})
}

// handleEvents streams OrchestratorPhaseChangedEvent updates for a
// workspace as Server-Sent Events until the client disconnects.
func (m *Manager) handleEvents(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	sess, ok := m.session(workspaceID)
	if !ok {
		http.Error(w, "unknown workspace", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := sess.Bus.SubscribeChannel("orchestrator.phase_changed", 32)
	defer sess.Bus.Unsubscribe(subID)

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			pe, ok := e.(event.OrchestratorPhaseChangedEvent)
			if !ok || pe.WorkspaceID != workspaceID {
				continue
			}
			data, _ := json.Marshal(pe)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

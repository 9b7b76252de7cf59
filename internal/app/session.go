// Package app wires a single coordination-core session: its stores, event
// bus, subscription service, tool surface, coordinator, and orchestrator.
// Per the coordination core's no-global-singletons rule, every CLI
// invocation and every server-mode workspace constructs its own Session.
package app

import (
	"github.com/routa-dev/routa/internal/config"
	"github.com/routa-dev/routa/internal/coordinator"
	"github.com/routa-dev/routa/internal/event"
	"github.com/routa-dev/routa/internal/logging"
	"github.com/routa-dev/routa/internal/orchestrator"
	"github.com/routa-dev/routa/internal/provider"
	"github.com/routa-dev/routa/internal/store"
	"github.com/routa-dev/routa/internal/subscription"
	"github.com/routa-dev/routa/internal/tools"
)

// Session bundles one workspace's wired collaborators.
type Session struct {
	Agents        store.AgentStore
	Tasks         store.TaskStore
	Conversations store.ConversationStore
	Bus           *event.Bus
	Subscriptions *subscription.Service
	Tools         *tools.Tools
	Coordinator   *coordinator.Coordinator
	Orchestrator  *orchestrator.Orchestrator
	Logger        *logging.Logger
}

// New wires a Session from cfg, using p as the session's Provider. p is
// supplied by the caller because selecting/authenticating a real model
// backend is the "language-neutral" boundary the coordination core treats
// as an external collaborator rather than something it constructs itself.
func New(cfg *config.Config, p provider.Provider) *Session {
	bus := event.NewBus()
	subs := subscription.NewService()
	subs.Start(bus)

	logger := newSessionLogger(cfg)

	agents := store.NewInMemoryAgentStore()
	tasks := store.NewInMemoryTaskStore()
	conversations := store.NewInMemoryConversationStore()
	tl := tools.New(agents, tasks, conversations, bus, subs)

	coord := coordinator.New(coordinator.Config{
		Tools:                    tl,
		Agents:                   agents,
		Tasks:                    tasks,
		Conversations:            conversations,
		Bus:                      bus,
		Subscriptions:            subs,
		ConversationTailMessages: cfg.Coordinator.ConversationTailMessages,
		Logger:                   logger,
	})

	orch := orchestrator.New(orchestrator.Config{
		Coordinator:   coord,
		Provider:      p,
		Tools:         tl,
		Agents:        agents,
		Conversations: conversations,
		Bus:           bus,
		MaxWaves:      cfg.Coordinator.MaxWaves,
		Logger:        logger,
	})

	return &Session{
		Agents:        agents,
		Tasks:         tasks,
		Conversations: conversations,
		Bus:           bus,
		Subscriptions: subs,
		Tools:         tl,
		Coordinator:   coord,
		Orchestrator:  orch,
		Logger:        logger,
	}
}

// newSessionLogger builds the Logger a Session's Orchestrator logs through,
// honoring config.LoggingConfig: disabled or unset means discard, otherwise
// a JSON logger under Paths.SessionDir (or stderr when SessionDir is
// empty). A session directory that can't be created falls back to stderr
// rather than failing session construction outright.
func newSessionLogger(cfg *config.Config) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}
	if cfg.Paths.SessionDir == "" {
		logger, _ := logging.NewLogger("", cfg.Logging.Level)
		return logger
	}

	rotation := logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	}
	logger, err := logging.NewRotatingLogger(cfg.Paths.SessionDir, cfg.Logging.Level, rotation)
	if err != nil {
		logger, _ = logging.NewLogger("", cfg.Logging.Level)
	}
	return logger
}

// Close stops the session's subscription service and flushes its logger.
func (s *Session) Close() {
	s.Subscriptions.Stop()
	_ = s.Logger.Close()
}

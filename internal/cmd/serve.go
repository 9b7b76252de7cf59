package cmd

import (
	"fmt"
	"log"
	"net/http"

	mcpsdk "github.com/mark3labs/mcp-go/server"
	"github.com/routa-dev/routa/internal/config"
	"github.com/routa-dev/routa/internal/event"
	"github.com/routa-dev/routa/internal/httpapi"
	"github.com/routa-dev/routa/internal/mcpserver"
	"github.com/routa-dev/routa/internal/provider"
	"github.com/routa-dev/routa/internal/store"
	"github.com/routa-dev/routa/internal/subscription"
	"github.com/routa-dev/routa/internal/tools"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and websocket stream, creating a workspace per request",
	Long: `serve starts the chi HTTP API (workspace creation, status polling, SSE and
websocket event delivery) on server.listen_addr. Each workspace created
through the API gets its own session. When mcp_enabled is set, serve also
runs one MCP tool server over stdio, exposing the Agent Tool Surface on its
own in-memory stores, separate from the API's workspaces.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("routa serve: loading config: %w", err)
	}

	manager := httpapi.NewManager(cfg, func() provider.Provider {
		return provider.NewMockProvider()
	})

	if cfg.Server.MCPEnabled {
		// A standalone MCP server over stdio, backed by its own in-memory
		// tool surface, for clients that want to drive
		// create_agent/delegate_task/etc. directly rather than through the
		// orchestrator-driven /workspaces endpoint.
		bus := event.NewBus()
		subs := subscription.NewService()
		subs.Start(bus)
		tl := tools.New(store.NewInMemoryAgentStore(), store.NewInMemoryTaskStore(), store.NewInMemoryConversationStore(), bus, subs)

		mcpSrv := mcpserver.New(tl)
		go func() {
			if err := mcpsdk.ServeStdio(mcpSrv); err != nil {
				log.Printf("mcp server: %v", err)
			}
		}()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", cfg.Server.ListenAddr)
	return http.ListenAndServe(cfg.Server.ListenAddr, manager.Router())
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/routa-dev/routa/internal/app"
	"github.com/routa-dev/routa/internal/config"
	routaerrors "github.com/routa-dev/routa/internal/errors"
	"github.com/routa-dev/routa/internal/provider"
	"github.com/routa-dev/routa/internal/store"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Drive one user request through planning, execution, and verification",
	Long: `run constructs a fresh session (stores, event bus, coordinator, and
orchestrator) and drives the given request through the ROUTA/CRAFTER/GATE
lifecycle to completion or until the wave budget is exhausted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("routa run: loading config: %w", err)
	}

	request := strings.Join(args, " ")
	workspaceID := uuid.NewString()

	sess := app.New(cfg, defaultRunProvider())
	defer sess.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Provider.Timeout()*time.Duration(cfg.Coordinator.MaxWaves))
	defer cancel()

	result, runErr := sess.Orchestrator.Run(ctx, workspaceID, request)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"workspaceId": result.WorkspaceID,
		"phase":       result.Phase,
		"waves":       result.Waves,
		"completed":   result.Completed,
	})

	if runErr == nil {
		return nil
	}

	// Exhausting the wave budget is a terminal outcome the result JSON above
	// already reports (phase, waves, completed) — not a CLI failure.
	var maxWaves *routaerrors.MaxWavesReachedError
	if routaerrors.As(runErr, &maxWaves) {
		return nil
	}
	return fmt.Errorf("routa run: %w", runErr)
}

// defaultRunProvider returns the Provider a CLI invocation drives when no
// model backend has been wired in. Selecting and authenticating a real
// model client is left to embedders per the coordination core's
// language-neutral provider boundary; MockProvider exercises the full
// lifecycle deterministically until one is plugged in.
func defaultRunProvider() provider.Provider {
	mock := provider.NewMockProvider()
	mock.SetResponse(store.RoleRouta, defaultPlanText)
	mock.SetResponse(store.RoleGate, "Reviewed against the acceptance criteria. APPROVED")
	return mock
}

const defaultPlanText = `@@@task
# Address the request

## Objective
Implement the requested change.

## Scope
- (unspecified — no model backend configured)

## Definition of Done
- Requested behavior is implemented

## Verification
- go build ./...
@@@
`

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/routa-dev/routa/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View routa configuration",
	Long: `View routa configuration.

Without arguments, displays the current configuration.
Use subcommands to show the config file path or create a default config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/routa/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Println("coordinator:")
	fmt.Printf("  max_waves: %d\n", cfg.Coordinator.MaxWaves)
	fmt.Printf("  max_iterations_routa: %d\n", cfg.Coordinator.MaxIterationsRouta)
	fmt.Printf("  max_iterations_crafter: %d\n", cfg.Coordinator.MaxIterationsCrafter)
	fmt.Printf("  max_iterations_gate: %d\n", cfg.Coordinator.MaxIterationsGate)
	fmt.Printf("  conversation_tail_messages: %d\n", cfg.Coordinator.ConversationTailMessages)

	fmt.Println("provider:")
	fmt.Printf("  name: %s\n", cfg.Provider.Name)
	fmt.Printf("  timeout_ms: %d\n", cfg.Provider.TimeoutMs)

	fmt.Println("event_bus:")
	fmt.Printf("  buffer_size: %d\n", cfg.EventBus.BufferSize)

	fmt.Println("logging:")
	fmt.Printf("  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)

	fmt.Println("server:")
	fmt.Printf("  listen_addr: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  mcp_enabled: %v\n", cfg.Server.MCPEnabled)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configContent := `# routa configuration

coordinator:
  max_waves: 5
  max_iterations_routa: 20
  max_iterations_crafter: 20
  max_iterations_gate: 30
  conversation_tail_messages: 20

provider:
  name: ""
  timeout_ms: 300000

event_bus:
  buffer_size: 256

logging:
  enabled: true
  level: info
  max_size_mb: 10
  max_backups: 3

server:
  listen_addr: ":8080"
  mcp_enabled: true

paths:
  session_dir: ""
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Default path: %s (not created)\n", configFile)
	}

	fmt.Println("\nSearch paths:")
	fmt.Printf("  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Printf("  2. $HOME/.config/routa/config.yaml\n")
	fmt.Printf("  3. ./config.yaml (current directory)\n")
	fmt.Println("\nEnvironment variables: ROUTA_* (e.g., ROUTA_COORDINATOR_MAX_WAVES)")

	return nil
}

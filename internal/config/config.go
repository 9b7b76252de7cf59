// Package config defines routa's runtime configuration and its viper
// wiring. Every field has a documented default so a fresh session behaves
// sensibly with no config file present.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete routa configuration.
type Config struct {
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	EventBus    EventBusConfig    `mapstructure:"event_bus"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Server      ServerConfig      `mapstructure:"server"`
	Paths       PathsConfig       `mapstructure:"paths"`
}

// CoordinatorConfig controls wave scheduling and per-role iteration budgets.
type CoordinatorConfig struct {
	// MaxWaves is the number of EXECUTING/VERIFYING cycles the orchestrator
	// will run before giving up with MaxWavesReached.
	MaxWaves int `mapstructure:"max_waves"`
	// MaxIterationsRouta is the per-run iteration budget for ROUTA agents.
	// It is validated and shown by `routa config show`; no provider run
	// reads it, so ROUTA runs are not bounded by it.
	MaxIterationsRouta int `mapstructure:"max_iterations_routa"`
	// MaxIterationsCrafter is the per-run iteration budget for CRAFTER
	// agents. Like MaxIterationsRouta, it is validated and shown but not
	// enforced on any provider run.
	MaxIterationsCrafter int `mapstructure:"max_iterations_crafter"`
	// MaxIterationsGate is the per-run iteration budget for GATE agents.
	// Like MaxIterationsRouta, it is validated and shown but not enforced on
	// any provider run.
	MaxIterationsGate int `mapstructure:"max_iterations_gate"`
	// ConversationTailMessages is how many of an agent's most recent
	// messages BuildAgentContext includes in that agent's own context.
	ConversationTailMessages int `mapstructure:"conversation_tail_messages"`
}

// ProviderConfig controls provider selection and run deadlines.
type ProviderConfig struct {
	// TimeoutMs is the provider run timeout. `routa run` multiplies it by
	// MaxWaves to set the deadline of the whole run; no single provider run
	// is given this timeout.
	TimeoutMs int `mapstructure:"timeout_ms"`
	// Name is the configured provider name. It is shown by `routa config
	// show`; provider selection does not read it.
	Name string `mapstructure:"name"`
}

// Timeout returns Provider.TimeoutMs as a time.Duration.
func (c ProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// EventBusConfig holds the event bus buffer setting.
type EventBusConfig struct {
	// BufferSize is the configured subscriber buffer capacity. It is
	// validated and shown by `routa config show`; the event bus does not
	// read it, and channel subscriptions take their capacity from the
	// bufferSize argument of Bus.SubscribeChannel.
	BufferSize int `mapstructure:"buffer_size"`
}

// LoggingConfig controls debug logging behavior.
type LoggingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// ServerConfig controls the optional HTTP/MCP/websocket surface started by
// `routa serve`.
type ServerConfig struct {
	// ListenAddr is the HTTP listen address for the chi API and websocket
	// stream.
	ListenAddr string `mapstructure:"listen_addr"`
	// MCPEnabled starts the MCP tool server alongside the HTTP server.
	MCPEnabled bool `mapstructure:"mcp_enabled"`
}

// PathsConfig controls where routa stores session data.
type PathsConfig struct {
	// SessionDir is the directory where debug logs are written. Empty
	// means logs go to stderr.
	SessionDir string `mapstructure:"session_dir"`
}

// Default returns a Config with sensible default values, matching the
// coordination defaults named in the coordination core's specification.
func Default() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			MaxWaves:                 5,
			MaxIterationsRouta:       20,
			MaxIterationsCrafter:     20,
			MaxIterationsGate:        30,
			ConversationTailMessages: 20,
		},
		Provider: ProviderConfig{
			TimeoutMs: 300_000,
			Name:      "",
		},
		EventBus: EventBusConfig{
			BufferSize: 256,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
			MCPEnabled: true,
		},
		Paths: PathsConfig{
			SessionDir: "",
		},
	}
}

// SetDefaults registers default values with viper so they are available
// even without a config file.
func SetDefaults() {
	d := Default()

	viper.SetDefault("coordinator.max_waves", d.Coordinator.MaxWaves)
	viper.SetDefault("coordinator.max_iterations_routa", d.Coordinator.MaxIterationsRouta)
	viper.SetDefault("coordinator.max_iterations_crafter", d.Coordinator.MaxIterationsCrafter)
	viper.SetDefault("coordinator.max_iterations_gate", d.Coordinator.MaxIterationsGate)
	viper.SetDefault("coordinator.conversation_tail_messages", d.Coordinator.ConversationTailMessages)

	viper.SetDefault("provider.timeout_ms", d.Provider.TimeoutMs)
	viper.SetDefault("provider.name", d.Provider.Name)

	viper.SetDefault("event_bus.buffer_size", d.EventBus.BufferSize)

	viper.SetDefault("logging.enabled", d.Logging.Enabled)
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", d.Logging.MaxBackups)

	viper.SetDefault("server.listen_addr", d.Server.ListenAddr)
	viper.SetDefault("server.mcp_enabled", d.Server.MCPEnabled)

	viper.SetDefault("paths.session_dir", d.Paths.SessionDir)
}

// Load reads the configuration from viper into a Config struct and
// validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if
// unmarshaling fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "routa")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".routa"
	}
	return filepath.Join(home, ".config", "routa")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

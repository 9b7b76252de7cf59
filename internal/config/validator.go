package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // The config field path (e.g., "coordinator.max_waves")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, c.validateCoordinator()...)
	errs = append(errs, c.validateProvider()...)
	errs = append(errs, c.validateEventBus()...)
	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateServer()...)

	return errs
}

func (c *Config) validateCoordinator() []ValidationError {
	var errs []ValidationError
	cc := c.Coordinator

	if cc.MaxWaves <= 0 {
		errs = append(errs, ValidationError{
			Field: "coordinator.max_waves", Value: cc.MaxWaves,
			Message: "must be positive",
		})
	}
	if cc.MaxIterationsRouta <= 0 {
		errs = append(errs, ValidationError{
			Field: "coordinator.max_iterations_routa", Value: cc.MaxIterationsRouta,
			Message: "must be positive",
		})
	}
	if cc.MaxIterationsCrafter <= 0 {
		errs = append(errs, ValidationError{
			Field: "coordinator.max_iterations_crafter", Value: cc.MaxIterationsCrafter,
			Message: "must be positive",
		})
	}
	if cc.MaxIterationsGate <= 0 {
		errs = append(errs, ValidationError{
			Field: "coordinator.max_iterations_gate", Value: cc.MaxIterationsGate,
			Message: "must be positive",
		})
	}
	if cc.ConversationTailMessages < 0 {
		errs = append(errs, ValidationError{
			Field: "coordinator.conversation_tail_messages", Value: cc.ConversationTailMessages,
			Message: "must not be negative",
		})
	}
	return errs
}

func (c *Config) validateProvider() []ValidationError {
	var errs []ValidationError
	if c.Provider.TimeoutMs <= 0 {
		errs = append(errs, ValidationError{
			Field: "provider.timeout_ms", Value: c.Provider.TimeoutMs,
			Message: "must be positive",
		})
	}
	return errs
}

func (c *Config) validateEventBus() []ValidationError {
	var errs []ValidationError
	if c.EventBus.BufferSize <= 0 {
		errs = append(errs, ValidationError{
			Field: "event_bus.buffer_size", Value: c.EventBus.BufferSize,
			Message: "must be positive",
		})
	}
	return errs
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field: "logging.level", Value: c.Logging.Level,
			Message: fmt.Sprintf("must be one of %v", ValidLogLevels()),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errs = append(errs, ValidationError{
			Field: "logging.max_size_mb", Value: c.Logging.MaxSizeMB,
			Message: "must not be negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field: "logging.max_backups", Value: c.Logging.MaxBackups,
			Message: "must not be negative",
		})
	}
	return errs
}

func (c *Config) validateServer() []ValidationError {
	var errs []ValidationError
	if c.Server.ListenAddr == "" {
		errs = append(errs, ValidationError{
			Field: "server.listen_addr", Value: c.Server.ListenAddr,
			Message: "must not be empty",
		})
	}
	return errs
}

package cli

import (
	"errors"
	"fmt"
)

// Exit statuses returned by ExitCode.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitRefused = 3
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// RefusedError reports an intent the agent declined to apply, such as a
// BLOCK ALL without confirmation. It is not a failure of the command itself.
type RefusedError struct {
	Reason string
}

func (e *RefusedError) Error() string {
	return "refused: " + e.Reason
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode returns the process exit status for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	var refused *RefusedError
	if errors.As(err, &refused) {
		return ExitRefused
	}
	return ExitFailure
}

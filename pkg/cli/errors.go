package cli

import (
	"errors"
	"fmt"
)

// Process exit codes for the triton binary.
const (
	ExitFailure = 1
	ExitConfig  = 2
)

// ConfigError reports a rejected engine configuration. Field is the
// dotted path into the config file ("dispatch.max_attempts"); it is
// empty when the file itself could not be loaded.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Message
	}
	return fmt.Sprintf("configuration %s: %s", e.Field, e.Message)
}

// CommandError wraps a subcommand failure so the top-level error line
// names the command that failed.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("triton %s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError for the given config field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewCommandError wraps err as a failure of the named subcommand.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

// ExitCode maps an error to the triton process exit code. Bad
// configuration is distinguished so init systems can tell a broken
// deploy from a runtime failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cerr *ConfigError
	if errors.As(err, &cerr) {
		return ExitConfig
	}
	return ExitFailure
}

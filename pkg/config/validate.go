package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path, e.g. "server.listen_address".
	Field string

	// Message describes the problem.
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates all field errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "configuration validation failed: " + e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed (%d errors):", len(e.Errors))
	for _, fe := range e.Errors {
		sb.WriteString("\n  - " + fe.Error())
	}
	return sb.String()
}

// Validate checks the configuration and returns a ValidationError
// listing every problem found.
func Validate(cfg *Config) error {
	var errs []FieldError
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		add("server.listen_address", "must be host:port: %v", err)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		add("server.shutdown_timeout", "must be positive")
	}

	switch cfg.Storage.Backend {
	case "sqlite":
		if cfg.Storage.PolicyPath == "" {
			add("storage.policy_path", "required for the sqlite backend")
		}
		if cfg.Storage.AuditPath == "" {
			add("storage.audit_path", "required for the sqlite backend")
		}
	case "memory":
	default:
		add("storage.backend", "must be %q or %q, got %q", "sqlite", "memory", cfg.Storage.Backend)
	}

	if cfg.Engine.EvalParallelism < 1 {
		add("engine.eval_parallelism", "must be at least 1")
	}
	if cfg.Engine.Workers < 1 {
		add("engine.workers", "must be at least 1")
	}
	if cfg.Engine.FireWindow <= 0 {
		add("engine.fire_window", "must be positive")
	}

	if cfg.Dispatch.MaxAttempts < 1 {
		add("dispatch.max_attempts", "must be at least 1")
	}
	if cfg.Dispatch.CallTimeout <= 0 {
		add("dispatch.call_timeout", "must be positive")
	}

	validateEndpoint := func(field string, ep EndpointConfig) {
		if ep.BaseURL == "" {
			return
		}
		u, err := url.Parse(ep.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			add(field+".base_url", "must be an absolute URL, got %q", ep.BaseURL)
		}
	}
	validateEndpoint("capabilities.sdn", cfg.Capabilities.SDN)
	validateEndpoint("capabilities.fl", cfg.Capabilities.FL)
	validateEndpoint("capabilities.alerts", cfg.Capabilities.Alerts)

	if cfg.Rollback.Interval <= 0 {
		add("rollback.interval", "must be positive")
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("telemetry.logging.level", "must be one of debug, info, warn, error; got %q", cfg.Telemetry.Logging.Level)
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		add("telemetry.logging.format", "must be %q or %q, got %q", "json", "text", cfg.Telemetry.Logging.Format)
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

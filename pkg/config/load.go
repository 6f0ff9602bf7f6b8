package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path,
// applies defaults, and validates the result. Environment variables are
// not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention TRITON_SECTION_FIELD (e.g. TRITON_SERVER_LISTEN_ADDRESS) and
// always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies TRITON_* environment variable overrides.
// Malformed values are ignored; validation catches the resulting state.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("TRITON_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("TRITON_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("TRITON_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("TRITON_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("TRITON_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Storage overrides
	envString("TRITON_STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("TRITON_STORAGE_POLICY_PATH", &cfg.Storage.PolicyPath)
	envString("TRITON_STORAGE_AUDIT_PATH", &cfg.Storage.AuditPath)
	envDuration("TRITON_STORAGE_BUSY_TIMEOUT", &cfg.Storage.BusyTimeout)
	envInt("TRITON_STORAGE_MAX_MEMORY_EVENTS", &cfg.Storage.MaxMemoryEvents)

	// Engine overrides
	envInt("TRITON_ENGINE_EVAL_PARALLELISM", &cfg.Engine.EvalParallelism)
	envInt("TRITON_ENGINE_WORKERS", &cfg.Engine.Workers)
	envDuration("TRITON_ENGINE_FIRE_WINDOW", &cfg.Engine.FireWindow)

	// Dispatch overrides
	envInt("TRITON_DISPATCH_MAX_ATTEMPTS", &cfg.Dispatch.MaxAttempts)
	envDuration("TRITON_DISPATCH_INITIAL_BACKOFF", &cfg.Dispatch.InitialBackoff)
	envDuration("TRITON_DISPATCH_MAX_BACKOFF", &cfg.Dispatch.MaxBackoff)
	envDuration("TRITON_DISPATCH_CALL_TIMEOUT", &cfg.Dispatch.CallTimeout)
	envInt("TRITON_DISPATCH_BREAKER_THRESHOLD", &cfg.Dispatch.BreakerThreshold)
	envDuration("TRITON_DISPATCH_BREAKER_COOLDOWN", &cfg.Dispatch.BreakerCooldown)

	// Capability endpoint overrides
	applyEndpointEnvOverrides("TRITON_CAPABILITIES_SDN", &cfg.Capabilities.SDN)
	applyEndpointEnvOverrides("TRITON_CAPABILITIES_FL", &cfg.Capabilities.FL)
	applyEndpointEnvOverrides("TRITON_CAPABILITIES_ALERTS", &cfg.Capabilities.Alerts)
	envString("TRITON_CAPABILITIES_SCRIPTS_DIR", &cfg.Capabilities.ScriptsDir)

	// Rollback overrides
	envBoolPtr("TRITON_ROLLBACK_ENABLED", &cfg.Rollback.Enabled)
	envDuration("TRITON_ROLLBACK_INTERVAL", &cfg.Rollback.Interval)

	// Template overrides
	envString("TRITON_TEMPLATES_DIR", &cfg.Templates.Dir)
	envBoolPtr("TRITON_TEMPLATES_WATCH", &cfg.Templates.Watch)
	envDuration("TRITON_TEMPLATES_DEBOUNCE", &cfg.Templates.Debounce)

	// Telemetry overrides
	envString("TRITON_LOG_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TRITON_LOG_FORMAT", &cfg.Telemetry.Logging.Format)
	envBoolPtr("TRITON_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
}

func applyEndpointEnvOverrides(prefix string, ep *EndpointConfig) {
	envString(prefix+"_BASE_URL", &ep.BaseURL)
	envString(prefix+"_API_KEY", &ep.APIKey)
	envDuration(prefix+"_TIMEOUT", &ep.Timeout)
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envBoolPtr(key string, dst **bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = &b
		}
	}
}

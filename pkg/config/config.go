package config

import "time"

// Config is the root configuration for the triton policy engine.
type Config struct {
	// Server configures the REST listener.
	Server ServerConfig `yaml:"server"`

	// Storage configures the policy, audit, and counter backends.
	Storage StorageConfig `yaml:"storage"`

	// Engine configures the decision pipeline.
	Engine EngineConfig `yaml:"engine"`

	// Dispatch configures retries, timeouts, and circuit breakers for
	// action execution.
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Capabilities configures the downstream systems actions run
	// against.
	Capabilities CapabilitiesConfig `yaml:"capabilities"`

	// Rollback configures the rollback monitor.
	Rollback RollbackConfig `yaml:"rollback"`

	// Templates configures the policy template directory.
	Templates TemplatesConfig `yaml:"templates"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	// ListenAddress is "host:port". Default: "127.0.0.1:8080".
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading one request. Default: 30s.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing one response. Default: 30s.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout bounds idle keep-alive connections. Default: 120s.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects and locates the persistence backends.
type StorageConfig struct {
	// Backend is "sqlite" or "memory". Default: "sqlite".
	Backend string `yaml:"backend"`

	// PolicyPath is the policy database file (sqlite backend).
	// Default: "triton-policies.db".
	PolicyPath string `yaml:"policy_path"`

	// AuditPath is the audit database file (sqlite backend).
	// Default: "triton-audit.db".
	AuditPath string `yaml:"audit_path"`

	// BusyTimeout is the SQLite lock wait. Default: 5s.
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// MaxMemoryEvents caps the in-memory audit ring (memory backend).
	MaxMemoryEvents int `yaml:"max_memory_events"`
}

// EngineConfig tunes the decision pipeline.
type EngineConfig struct {
	// EvalParallelism bounds condition-evaluation fan-out. Default: 8.
	EvalParallelism int `yaml:"eval_parallelism"`

	// Workers sizes the decision worker pool. Default: 4.
	Workers int `yaml:"workers"`

	// FireWindow is the cron eligibility window. Default: 1m.
	FireWindow time.Duration `yaml:"fire_window"`
}

// DispatchConfig tunes action execution.
type DispatchConfig struct {
	// MaxAttempts is the per-action retry budget. Default: 3.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the first retry delay. Default: 100ms.
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the retry delay. Default: 5s.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// CallTimeout bounds one capability call. Default: 5s.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// BreakerThreshold opens a target's breaker after this many
	// consecutive failures. Default: 5.
	BreakerThreshold int `yaml:"breaker_threshold"`

	// BreakerCooldown is the open duration before a probe. Default: 30s.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// EndpointConfig locates one downstream HTTP capability.
type EndpointConfig struct {
	// BaseURL is the capability's base endpoint. Empty disables it.
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as a bearer token when set.
	APIKey string `yaml:"api_key"`

	// Timeout is the whole-request timeout. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`
}

// CapabilitiesConfig configures the downstream systems.
type CapabilitiesConfig struct {
	// SDN is the SDN controller's northbound API.
	SDN EndpointConfig `yaml:"sdn"`

	// FL is the federated-learning coordinator's control API.
	FL EndpointConfig `yaml:"fl"`

	// Alerts is the alert webhook receiver. Empty falls back to a
	// log-only channel.
	Alerts EndpointConfig `yaml:"alerts"`

	// ScriptsDir is the directory of registered scripts. Empty
	// disables execute_script actions.
	ScriptsDir string `yaml:"scripts_dir"`
}

// RollbackConfig tunes the rollback monitor.
type RollbackConfig struct {
	// Enabled toggles the monitor. Default: true.
	Enabled *bool `yaml:"enabled"`

	// Interval is the tick period. Default: 30s.
	Interval time.Duration `yaml:"interval"`
}

// TemplatesConfig configures policy templates.
type TemplatesConfig struct {
	// Dir is the template directory. Empty disables templates.
	Dir string `yaml:"dir"`

	// Watch hot-reloads the directory on changes. Default: true when
	// Dir is set.
	Watch *bool `yaml:"watch"`

	// Debounce is the reload quiet period. Default: 100ms.
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error". Default: "info".
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json".
	Format string `yaml:"format"`

	// AddSource includes file:line in records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled toggles metrics collection. Default: true.
	Enabled *bool `yaml:"enabled"`
}

// TelemetryConfig groups observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// RollbackEnabled resolves the optional toggle.
func (c RollbackConfig) RollbackEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// MetricsEnabled resolves the optional toggle.
func (c MetricsConfig) MetricsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// WatchEnabled resolves the optional toggle.
func (c TemplatesConfig) WatchEnabled() bool {
	return c.Dir != "" && (c.Watch == nil || *c.Watch)
}

package config

import "time"

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.PolicyPath == "" {
		cfg.Storage.PolicyPath = "triton-policies.db"
	}
	if cfg.Storage.AuditPath == "" {
		cfg.Storage.AuditPath = "triton-audit.db"
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = 5 * time.Second
	}

	if cfg.Engine.EvalParallelism == 0 {
		cfg.Engine.EvalParallelism = 8
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = 4
	}
	if cfg.Engine.FireWindow == 0 {
		cfg.Engine.FireWindow = time.Minute
	}

	if cfg.Dispatch.MaxAttempts == 0 {
		cfg.Dispatch.MaxAttempts = 3
	}
	if cfg.Dispatch.InitialBackoff == 0 {
		cfg.Dispatch.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.Dispatch.MaxBackoff == 0 {
		cfg.Dispatch.MaxBackoff = 5 * time.Second
	}
	if cfg.Dispatch.CallTimeout == 0 {
		cfg.Dispatch.CallTimeout = 5 * time.Second
	}
	if cfg.Dispatch.BreakerThreshold == 0 {
		cfg.Dispatch.BreakerThreshold = 5
	}
	if cfg.Dispatch.BreakerCooldown == 0 {
		cfg.Dispatch.BreakerCooldown = 30 * time.Second
	}

	for _, ep := range []*EndpointConfig{
		&cfg.Capabilities.SDN, &cfg.Capabilities.FL, &cfg.Capabilities.Alerts,
	} {
		if ep.Timeout == 0 {
			ep.Timeout = 10 * time.Second
		}
	}

	if cfg.Rollback.Interval == 0 {
		cfg.Rollback.Interval = 30 * time.Second
	}

	if cfg.Templates.Debounce == 0 {
		cfg.Templates.Debounce = 100 * time.Millisecond
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
}

// DefaultConfig returns a fully defaulted configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

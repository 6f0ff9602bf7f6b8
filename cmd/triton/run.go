package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fedgrid-hq/triton/pkg/audit"
	"fedgrid-hq/triton/pkg/cli"
	"fedgrid-hq/triton/pkg/config"
	"fedgrid-hq/triton/pkg/dispatch"
	"fedgrid-hq/triton/pkg/dispatch/alert"
	"fedgrid-hq/triton/pkg/dispatch/fl"
	"fedgrid-hq/triton/pkg/dispatch/script"
	"fedgrid-hq/triton/pkg/dispatch/sdn"
	"fedgrid-hq/triton/pkg/dispatch/transport"
	"fedgrid-hq/triton/pkg/engine"
	"fedgrid-hq/triton/pkg/policy/condition"
	"fedgrid-hq/triton/pkg/policy/resolve"
	"fedgrid-hq/triton/pkg/policy/schedule"
	"fedgrid-hq/triton/pkg/policy/store"
	"fedgrid-hq/triton/pkg/policy/template"
	"fedgrid-hq/triton/pkg/rollback"
	"fedgrid-hq/triton/pkg/server"
	"fedgrid-hq/triton/pkg/telemetry/logging"
	"fedgrid-hq/triton/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Triton policy engine",
	Long: `Start the Triton policy engine with the specified configuration.

The server exposes the policy REST API on the configured address and runs
the decision engine, template watcher, and rollback monitor.

Examples:
  # Start with default config
  triton run

  # Start with custom config
  triton run --config /etc/triton/config.yaml

  # Override listen address
  triton run --listen 0.0.0.0:8080

  # Validate config without starting the server
  triton run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	}); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Triton v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Storage backends
	policies, events, counters, err := openStores(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer policies.Close()
	defer events.Close()
	if closer, ok := counters.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// Downstream capabilities
	caps, err := buildCapabilities(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	dispatcher, err := dispatch.NewDispatcher(caps, dispatch.Config{
		MaxAttempts:      cfg.Dispatch.MaxAttempts,
		InitialBackoff:   cfg.Dispatch.InitialBackoff,
		MaxBackoff:       cfg.Dispatch.MaxBackoff,
		CallTimeout:      cfg.Dispatch.CallTimeout,
		BreakerThreshold: cfg.Dispatch.BreakerThreshold,
		BreakerCooldown:  cfg.Dispatch.BreakerCooldown,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	// Decision pipeline
	evaluator := condition.NewEvaluator(condition.NewRegistry(condition.NewRegexCache()), nil)
	scheduler := schedule.NewScheduler(counters, cfg.Engine.FireWindow, nil)
	resolver := resolve.NewResolver(nil)
	eng := engine.New(policies, evaluator, scheduler, resolver, dispatcher, events, cfg.Engine.EvalParallelism)

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.MetricsEnabled() {
		collector = metrics.NewCollector(nil)
		eng.UseMetrics(collector)
	}
	fmt.Println("✓ Decision engine initialized")

	// Background collaborators share a context that is cancelled on
	// SIGINT/SIGTERM so they stop alongside the server.
	ctx, cancel := context.WithCancel(cli.SetupSignalHandler())
	defer cancel()

	// Periodic decision passes keep cron-scheduled policies firing
	// without an inbound request. API calls still evaluate inline.
	pool := engine.NewPool(eng, cfg.Engine.Workers)
	ticks := make(chan engine.DecisionRequest)
	go pool.Run(ctx, ticks)
	go func() {
		ticker := time.NewTicker(cfg.Engine.FireWindow)
		defer ticker.Stop()
		defer close(ticks)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case ticks <- engine.DecisionRequest{Context: map[string]interface{}{}}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	// Policy templates
	var templates *template.Registry
	if cfg.Templates.Dir != "" {
		templates, err = template.NewRegistry(cfg.Templates.Dir)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		fmt.Printf("✓ Templates loaded (%d templates)\n", templates.Len())

		if cfg.Templates.WatchEnabled() {
			watcher, err := template.NewWatcher(templates, cfg.Templates.Debounce)
			if err != nil {
				return cli.NewCommandError("run", err)
			}
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					fmt.Printf("template watcher stopped: %v\n", err)
				}
			}()
		}
	}

	// Rollback monitor
	if cfg.Rollback.RollbackEnabled() {
		monitor := rollback.NewMonitor(policies, events, dispatcher, caps.Alerts, cfg.Rollback.Interval)
		if collector != nil {
			monitor.UseMetrics(collector)
		}
		go func() {
			if err := monitor.Run(ctx); err != nil {
				fmt.Printf("rollback monitor stopped: %v\n", err)
			}
		}()
		fmt.Println("✓ Rollback monitor started")
	}

	srv := server.NewServer(&cfg.Server, policies, eng, events, templates, collector)

	fmt.Println()
	fmt.Printf("✓ API listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if collector != nil {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Println("✓ Server stopped")
	return nil
}

// openStores builds the policy store, audit store, and schedule
// counters for the configured backend.
func openStores(cfg *config.Config) (store.Store, audit.Store, schedule.CounterStore, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		policies, err := store.NewSQLiteStore(store.SQLiteConfig{
			Path:        cfg.Storage.PolicyPath,
			BusyTimeout: cfg.Storage.BusyTimeout,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		events, err := audit.NewSQLiteStore(audit.SQLiteConfig{
			Path:        cfg.Storage.AuditPath,
			BusyTimeout: cfg.Storage.BusyTimeout,
		})
		if err != nil {
			policies.Close()
			return nil, nil, nil, err
		}
		// Execution counters share the policy database so event
		// schedules survive restarts.
		counters, err := schedule.NewSQLiteCounters(cfg.Storage.PolicyPath)
		if err != nil {
			events.Close()
			policies.Close()
			return nil, nil, nil, err
		}
		return policies, events, counters, nil
	case "memory":
		return store.NewMemoryStore(), audit.NewMemoryStore(cfg.Storage.MaxMemoryEvents), schedule.NewMemoryCounters(), nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

// buildCapabilities wires the configured downstream endpoints. Targets
// without a base URL stay unset; dispatching to them reports a missing
// capability instead of failing at startup.
func buildCapabilities(cfg *config.Config) (dispatch.Capabilities, error) {
	var caps dispatch.Capabilities

	if cfg.Capabilities.SDN.BaseURL != "" {
		controller, err := sdn.NewController(endpointTransport(cfg.Capabilities.SDN))
		if err != nil {
			return caps, fmt.Errorf("sdn controller: %w", err)
		}
		caps.SDN = controller
	}
	if cfg.Capabilities.FL.BaseURL != "" {
		coordinator, err := fl.NewCoordinator(endpointTransport(cfg.Capabilities.FL))
		if err != nil {
			return caps, fmt.Errorf("fl coordinator: %w", err)
		}
		caps.FL = coordinator
	}
	if cfg.Capabilities.Alerts.BaseURL != "" {
		channel, err := alert.NewChannel(endpointTransport(cfg.Capabilities.Alerts), "triton")
		if err != nil {
			return caps, fmt.Errorf("alert channel: %w", err)
		}
		caps.Alerts = channel
	} else {
		caps.Alerts = alert.NewLogChannel()
	}
	if cfg.Capabilities.ScriptsDir != "" {
		runner, err := script.NewRunner(cfg.Capabilities.ScriptsDir)
		if err != nil {
			return caps, fmt.Errorf("script runner: %w", err)
		}
		caps.Scripts = runner
	}

	return caps, nil
}

func endpointTransport(ep config.EndpointConfig) transport.Config {
	tc := transport.DefaultConfig(ep.BaseURL)
	tc.APIKey = ep.APIKey
	if ep.Timeout > 0 {
		tc.Timeout = ep.Timeout
	}
	return tc
}

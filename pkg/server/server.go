package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"fedgrid-hq/triton/pkg/audit"
	"fedgrid-hq/triton/pkg/config"
	"fedgrid-hq/triton/pkg/engine"
	"fedgrid-hq/triton/pkg/policy/store"
	"fedgrid-hq/triton/pkg/policy/template"
	"fedgrid-hq/triton/pkg/server/middleware"
	"fedgrid-hq/triton/pkg/telemetry/metrics"
)

// Server is the HTTP API server for the policy engine.
type Server struct {
	config       *config.ServerConfig
	policies     store.Store
	engine       *engine.Engine
	events       audit.Store
	templates    *template.Registry
	metrics      *metrics.Collector
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates an API server over its collaborators. templates
// and collector may be nil; the matching routes degrade gracefully.
func NewServer(cfg *config.ServerConfig, policies store.Store, eng *engine.Engine,
	events audit.Store, templates *template.Registry, collector *metrics.Collector) *Server {
	return &Server{
		config:       cfg,
		policies:     policies,
		engine:       eng,
		events:       events,
		templates:    templates,
		metrics:      collector,
		logger:       slog.Default().With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", s.config.ListenAddress)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /policies", s.handleCreatePolicy)
	mux.HandleFunc("GET /policies", s.handleListPolicies)
	mux.HandleFunc("GET /policies/templates", s.handleListTemplates)
	mux.HandleFunc("POST /policies/from-template", s.handleFromTemplate)
	mux.HandleFunc("POST /policies/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /policies/simulate", s.handleSimulate)
	mux.HandleFunc("GET /policies/{id}", s.handleGetPolicy)
	mux.HandleFunc("PUT /policies/{id}", s.handleUpdatePolicy)
	mux.HandleFunc("DELETE /policies/{id}", s.handleDeletePolicy)
	mux.HandleFunc("POST /policies/{id}/state", s.handleSetState)
	mux.HandleFunc("POST /policies/{id}/revert", s.handleRevertPolicy)
	mux.HandleFunc("GET /policies/{id}/versions", s.handlePolicyVersions)
	mux.HandleFunc("GET /events", s.handleQueryEvents)
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.RequestID(handler)
	handler = middleware.Logging(handler)
	handler = middleware.Recovery(handler)
	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

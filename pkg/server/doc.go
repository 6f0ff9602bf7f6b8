// Package server provides the HTTP API for the policy engine.
//
// This package ties together the policy store, decision engine, audit
// log, and template registry behind a JSON REST surface, and manages
// server lifecycle including start, graceful shutdown, and OS signal
// handling (SIGTERM, SIGINT).
//
// # Routes
//
//   - POST /policies - create a policy
//   - GET /policies - list policies (filter by state, category)
//   - GET /policies/{id} - fetch one policy
//   - PUT /policies/{id} - version-checked update
//   - DELETE /policies/{id} - soft delete (archive)
//   - POST /policies/{id}/state - lifecycle transition
//   - POST /policies/{id}/revert - restore a prior version
//   - GET /policies/{id}/versions - version history
//   - POST /policies/evaluate - run a decision pass
//   - POST /policies/simulate - replay a scenario in dry-run
//   - GET /policies/templates - list policy templates
//   - POST /policies/from-template - instantiate a template
//   - GET /events - query the audit log
//   - GET /health - liveness probe
//   - GET /metrics - Prometheus exposition (when enabled)
//
// # Middleware Chain
//
// Requests pass through request-ID assignment, structured logging, and
// panic recovery, outermost first.
//
// # Graceful Shutdown
//
// Start blocks until the context is cancelled or a shutdown signal
// arrives, then drains in-flight requests up to the configured
// shutdown timeout.
package server

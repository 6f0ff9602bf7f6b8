// Package telemetry groups the observability subpackages: structured
// logging setup (logging) and Prometheus metrics (metrics).
package telemetry

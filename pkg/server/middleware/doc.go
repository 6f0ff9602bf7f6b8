// Package middleware provides HTTP middleware for the policy API.
//
// Requests pass through the following chain (innermost to outermost):
//  1. RequestID: assigns a unique request ID for correlation
//  2. Logging: logs request/response details with latency
//  3. Recovery: recovers from handler panics and returns 500
package middleware

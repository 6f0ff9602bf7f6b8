// Package transport is the shared HTTP plumbing for capability
// clients: a pooled client with JSON encoding, bearer auth, and
// status-code handling. The sdn, fl, and alert packages build their
// adapters on it.
package transport

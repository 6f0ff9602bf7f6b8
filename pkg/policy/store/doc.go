// Package store provides the policy registry: versioned CRUD over
// policies with lifecycle management, optimistic concurrency, and
// registration-time integrity checks.
//
// Writes are all-or-nothing. A policy is validated (tree shape,
// operators, schedule, action types), its requires/conflicts
// references are checked against the current registry, and the
// requires graph is checked for cycles before anything is persisted.
// Updates carry the caller's expected version; a mismatch returns
// VersionConflictError and leaves the stored policy untouched.
//
// Every update snapshots the previous document, so Revert can restore
// any prior version as a new version (history is never rewritten).
//
// Two backends are provided: MemoryStore for tests and embedded use,
// and SQLiteStore for durable deployments.
package store

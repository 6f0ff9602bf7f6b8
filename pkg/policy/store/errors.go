package store

import "fmt"

// NotFoundError indicates the requested policy (or policy version)
// does not exist.
type NotFoundError struct {
	PolicyID string

	// Version is non-zero when a specific historical version was
	// requested.
	Version int
}

func (e *NotFoundError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("policy %s: version %d not found", e.PolicyID, e.Version)
	}
	return fmt.Sprintf("policy %s: not found", e.PolicyID)
}

// VersionConflictError indicates an optimistic-concurrency failure: the
// caller's expected version no longer matches the stored version. The
// caller should re-read and retry.
type VersionConflictError struct {
	PolicyID string
	Expected int
	Actual   int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("policy %s: version conflict: expected %d, stored is %d",
		e.PolicyID, e.Expected, e.Actual)
}

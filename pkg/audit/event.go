package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies an audit event.
type Kind string

const (
	// KindEvaluation records a policy evaluation (matched or not).
	KindEvaluation Kind = "evaluation"

	// KindDispatch records action execution for a matched policy.
	KindDispatch Kind = "dispatch"

	// KindRollback records an automatic compensation run.
	KindRollback Kind = "rollback"

	// KindReject records a policy excluded by the resolver.
	KindReject Kind = "reject"
)

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEvaluation, KindDispatch, KindRollback, KindReject:
		return true
	}
	return false
}

// Payload keys the engine writes on dispatch events. The rollback
// monitor reads these to compute success rates.
const (
	PayloadActionsTotal  = "actions_total"
	PayloadActionsFailed = "actions_failed"
)

// Event is a single immutable audit record.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Timestamp is when the event was recorded.
	Timestamp time.Time `json:"timestamp"`

	// PolicyID is the policy the event concerns.
	PolicyID string `json:"policy_id"`

	// Kind classifies the event.
	Kind Kind `json:"kind"`

	// Payload carries kind-specific details (match result, action
	// outcomes, rejection reason, rollback trigger).
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// NewEvent builds an event with a fresh id and the current timestamp.
func NewEvent(policyID string, kind Kind, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		PolicyID:  policyID,
		Kind:      kind,
		Payload:   payload,
	}
}

// Query filters audit events. Zero-valued fields are ignored.
type Query struct {
	// PolicyID restricts results to one policy.
	PolicyID string

	// Kind restricts results to one event kind.
	Kind Kind

	// From is the inclusive lower bound on Timestamp.
	From *time.Time

	// To is the inclusive upper bound on Timestamp.
	To *time.Time

	// Limit caps the result count (default 100).
	Limit int

	// Offset skips leading results for pagination.
	Offset int
}

// Matches reports whether the event satisfies the query filters
// (ignoring pagination).
func (q *Query) Matches(e *Event) bool {
	if q.PolicyID != "" && e.PolicyID != q.PolicyID {
		return false
	}
	if q.Kind != "" && e.Kind != q.Kind {
		return false
	}
	if q.From != nil && e.Timestamp.Before(*q.From) {
		return false
	}
	if q.To != nil && e.Timestamp.After(*q.To) {
		return false
	}
	return true
}

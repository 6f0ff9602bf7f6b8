package audit

import "context"

// Store is the append-only audit event log. Implementations must be
// safe for concurrent use. There are intentionally no update or delete
// operations.
type Store interface {
	// Append records an event. Events are immutable once appended.
	Append(ctx context.Context, event *Event) error

	// Query returns events matching the filters, newest first.
	Query(ctx context.Context, query Query) ([]*Event, error)

	// Count returns the number of events matching the filters.
	Count(ctx context.Context, query Query) (int64, error)

	// Close releases backend resources.
	Close() error
}

// SuccessRate derives an action success rate from dispatch events, using
// the actions_total / actions_failed payload counters. The second return
// value is the number of actions observed; a rate over zero samples is
// reported as (1.0, 0) so callers can distinguish "no signal" from
// genuine failure.
func SuccessRate(events []*Event) (float64, int) {
	var total, failed int
	for _, e := range events {
		if e.Kind != KindDispatch {
			continue
		}
		total += payloadInt(e.Payload, PayloadActionsTotal)
		failed += payloadInt(e.Payload, PayloadActionsFailed)
	}
	if total == 0 {
		return 1.0, 0
	}
	return float64(total-failed) / float64(total), total
}

// payloadInt reads an integer payload value, tolerating the float64
// shape JSON round-trips produce.
func payloadInt(payload map[string]interface{}, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

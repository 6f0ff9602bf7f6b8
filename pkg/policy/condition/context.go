package condition

import "strings"

// Context is the immutable key-value snapshot a decision is evaluated
// against (e.g. traffic_type, network_utilization, experiment_status).
// Construct one with NewContext, which copies the input map; evaluation
// never mutates it.
type Context map[string]interface{}

// NewContext builds a Context from the given map. The top-level map is
// copied so later caller mutations do not leak into in-flight decisions.
func NewContext(fields map[string]interface{}) Context {
	ctx := make(Context, len(fields))
	for k, v := range fields {
		ctx[k] = v
	}
	return ctx
}

// Lookup resolves a field name to its value. Dotted names traverse
// nested maps: "network.utilization" first tries the literal key, then
// walks map values segment by segment.
func (c Context) Lookup(field string) (interface{}, bool) {
	if v, ok := c[field]; ok {
		return v, true
	}
	if !strings.Contains(field, ".") {
		return nil, false
	}

	segments := strings.Split(field, ".")
	var current interface{} = map[string]interface{}(c)
	for _, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			if ctx, isCtx := current.(Context); isCtx {
				m = map[string]interface{}(ctx)
			} else {
				return nil, false
			}
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

package condition

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"fedgrid-hq/triton/pkg/policy"
)

// builtinOperators returns one implementation per supported operator.
func builtinOperators(cache *RegexCache) []Operator {
	return []Operator{
		equalsOp{negate: false},
		equalsOp{negate: true},
		compareOp{name: policy.OpGreaterThan, cmp: func(a, b float64) bool { return a > b }},
		compareOp{name: policy.OpLessThan, cmp: func(a, b float64) bool { return a < b }},
		compareOp{name: policy.OpGreaterEq, cmp: func(a, b float64) bool { return a >= b }},
		compareOp{name: policy.OpLessEq, cmp: func(a, b float64) bool { return a <= b }},
		inOp{negate: false},
		inOp{negate: true},
		containsOp{negate: false},
		containsOp{negate: true},
		matchesOp{cache: cache},
		betweenOp{},
		existsOp{},
	}
}

// equalsOp implements equals / not_equals. Numeric operands compare by
// value (so 3 == 3.0); everything else falls back to deep equality.
type equalsOp struct {
	negate bool
}

func (o equalsOp) Name() policy.Operator {
	if o.negate {
		return policy.OpNotEquals
	}
	return policy.OpEquals
}

func (o equalsOp) Apply(actual, expected interface{}) (bool, error) {
	equal := looseEqual(actual, expected)
	if o.negate {
		return !equal, nil
	}
	return equal, nil
}

// compareOp implements the numeric orderings (gt, lt, gte, lte).
type compareOp struct {
	name policy.Operator
	cmp  func(actual, expected float64) bool
}

func (o compareOp) Name() policy.Operator { return o.name }

func (o compareOp) Apply(actual, expected interface{}) (bool, error) {
	a, b, err := toNumericPair(actual, expected)
	if err != nil {
		return false, err
	}
	return o.cmp(a, b), nil
}

// inOp implements in / not_in over list-valued expectations.
type inOp struct {
	negate bool
}

func (o inOp) Name() policy.Operator {
	if o.negate {
		return policy.OpNotIn
	}
	return policy.OpIn
}

func (o inOp) Apply(actual, expected interface{}) (bool, error) {
	list := reflect.ValueOf(expected)
	if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
		return false, fmt.Errorf("in operator requires a list value, got %T", expected)
	}
	found := false
	for i := 0; i < list.Len(); i++ {
		if looseEqual(actual, list.Index(i).Interface()) {
			found = true
			break
		}
	}
	if o.negate {
		return !found, nil
	}
	return found, nil
}

// containsOp implements contains / not_contains: substring match for
// strings, element membership for lists.
type containsOp struct {
	negate bool
}

func (o containsOp) Name() policy.Operator {
	if o.negate {
		return policy.OpNotContains
	}
	return policy.OpContains
}

func (o containsOp) Apply(actual, expected interface{}) (bool, error) {
	contained, err := containsValue(actual, expected)
	if err != nil {
		return false, err
	}
	if o.negate {
		return !contained, nil
	}
	return contained, nil
}

func containsValue(actual, expected interface{}) (bool, error) {
	if s, ok := actual.(string); ok {
		sub, ok := asString(expected)
		if !ok {
			return false, fmt.Errorf("contains operator requires a string operand, got %T", expected)
		}
		return strings.Contains(s, sub), nil
	}

	list := reflect.ValueOf(actual)
	if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
		return false, fmt.Errorf("contains operator requires a string or list context value, got %T", actual)
	}
	for i := 0; i < list.Len(); i++ {
		if looseEqual(list.Index(i).Interface(), expected) {
			return true, nil
		}
	}
	return false, nil
}

// matchesOp implements regex matching with pattern caching.
type matchesOp struct {
	cache *RegexCache
}

func (o matchesOp) Name() policy.Operator { return policy.OpMatches }

func (o matchesOp) Apply(actual, expected interface{}) (bool, error) {
	pattern, ok := expected.(string)
	if !ok {
		return false, fmt.Errorf("matches operator requires a string pattern, got %T", expected)
	}
	subject, ok := asString(actual)
	if !ok {
		return false, fmt.Errorf("matches operator requires a string context value, got %T", actual)
	}
	re, err := o.cache.Get(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re.MatchString(subject), nil
}

// betweenOp implements the inclusive range check: low <= value <= high.
type betweenOp struct{}

func (o betweenOp) Name() policy.Operator { return policy.OpBetween }

func (o betweenOp) Apply(actual, expected interface{}) (bool, error) {
	bounds := reflect.ValueOf(expected)
	if (bounds.Kind() != reflect.Slice && bounds.Kind() != reflect.Array) || bounds.Len() != 2 {
		return false, fmt.Errorf("between operator requires a [low, high] pair, got %T", expected)
	}
	value, err := toFloat64(actual)
	if err != nil {
		return false, err
	}
	low, err := toFloat64(bounds.Index(0).Interface())
	if err != nil {
		return false, err
	}
	high, err := toFloat64(bounds.Index(1).Interface())
	if err != nil {
		return false, err
	}
	return low <= value && value <= high, nil
}

// existsOp reports field presence. The evaluator resolves presence before
// dispatch, so being invoked at all means the field exists.
type existsOp struct{}

func (o existsOp) Name() policy.Operator { return policy.OpExists }

func (o existsOp) Apply(actual, expected interface{}) (bool, error) {
	return true, nil
}

// looseEqual compares two values, treating all numeric types as float64
// so JSON-decoded numbers compare naturally against Go ints.
func looseEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	an, aerr := toFloat64(a)
	bn, berr := toFloat64(b)
	if aerr == nil && berr == nil {
		return an == bn
	}
	return reflect.DeepEqual(a, b)
}

func toNumericPair(actual, expected interface{}) (float64, float64, error) {
	a, err := toFloat64(actual)
	if err != nil {
		return 0, 0, fmt.Errorf("context value: %w", err)
	}
	b, err := toFloat64(expected)
	if err != nil {
		return 0, 0, fmt.Errorf("expected value: %w", err)
	}
	return a, b, nil
}

// toFloat64 coerces numeric types and numeric strings to float64.
func toFloat64(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to number", val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
}

func asString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return "", false
	}
}

// Package condition implements the condition evaluator: a pure,
// deterministic function from (condition tree, decision context) to a
// boolean match result.
//
// Leaf comparisons dispatch through a registered operator table rather
// than string switches at call sites; new operators are added by
// registering an implementation of the Operator interface. Composite
// nodes short-circuit: "and" stops at the first false child, "or" at the
// first true child.
//
// The evaluator never aborts a decision: a failed type coercion or an
// uncompilable pattern degrades that leaf to false and logs a warning.
// Regex patterns are compiled once and cached, keyed by pattern, so
// repeated evaluations of the same policy version reuse the compiled
// program. Nothing in this package reads the clock or any other ambient
// state - repeated calls with equal inputs always return equal results.
package condition

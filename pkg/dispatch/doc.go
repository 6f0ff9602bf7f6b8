// Package dispatch executes policy actions against external
// capabilities: the SDN controller, the federated-learning
// coordinator, alert channels, and a script runner.
//
// Execution within one policy is sequential in declared order. A
// failing action marks its outcome failed but does not short-circuit
// the remaining actions. Every external call carries a per-call
// timeout and a bounded retry budget with exponential backoff; calls
// to the same external resource are serialized through a keyed lock,
// and each downstream target sits behind a circuit breaker so a dead
// target fails fast instead of stacking retries.
//
// Dry-run dispatch produces the same outcome structure without ever
// invoking a capability. That guarantee is what makes simulation safe
// to expose over the API.
package dispatch

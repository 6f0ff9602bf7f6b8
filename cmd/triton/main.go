// Triton is a policy decision and enforcement engine for federated
// learning deployments on software-defined networks.
//
// It stores versioned governance policies, evaluates them against
// context snapshots, resolves dependencies and conflicts, dispatches
// actions to SDN controllers and FL coordinators, and keeps an
// append-only audit trail with automatic rollback on degraded
// enforcement.
//
// Usage:
//
//	# Start the engine with default configuration
//	triton run
//
//	# Start with a custom configuration file
//	triton run --config /etc/triton/config.yaml
//
//	# Validate policy files
//	triton lint --file policies/qos.yaml
//
//	# Show version information
//	triton version
package main

func main() {
	Execute()
}

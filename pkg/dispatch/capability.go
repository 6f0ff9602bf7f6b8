package dispatch

import "context"

// Params carries action parameters to a capability call.
type Params map[string]interface{}

// String returns the named parameter as a string, or "" when absent.
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// SDNController applies network-level actions on the SDN control
// plane.
type SDNController interface {
	// SetQoSClass assigns a QoS class to a traffic selector.
	SetQoSClass(ctx context.Context, params Params) error

	// InstallFlowRule installs a flow rule into the flow table.
	InstallFlowRule(ctx context.Context, params Params) error

	// AllocateBandwidth reserves bandwidth for a traffic selector.
	AllocateBandwidth(ctx context.Context, params Params) error

	// RestoreState reverts the network changes a policy made, used by
	// compensating actions.
	RestoreState(ctx context.Context, policyID string, params Params) error
}

// FLCoordinator steers the federated-learning training server.
type FLCoordinator interface {
	// AdjustTrainingParams changes round hyperparameters.
	AdjustTrainingParams(ctx context.Context, params Params) error

	// SelectClients constrains the client cohort for upcoming rounds.
	SelectClients(ctx context.Context, params Params) error

	// TriggerAggregation forces an aggregation round.
	TriggerAggregation(ctx context.Context, params Params) error
}

// AlertChannel delivers operator notifications.
type AlertChannel interface {
	// Send delivers one alert.
	Send(ctx context.Context, params Params) error
}

// ScriptRunner executes operator-registered scripts.
type ScriptRunner interface {
	// Run executes the named script with its arguments.
	Run(ctx context.Context, params Params) error
}

// Capabilities bundles the external systems a dispatcher can reach.
// A nil field makes the corresponding action types fail with
// ActionExecutionError rather than panic.
type Capabilities struct {
	SDN     SDNController
	FL      FLCoordinator
	Alerts  AlertChannel
	Scripts ScriptRunner
}

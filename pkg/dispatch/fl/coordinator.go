// Package fl is the HTTP adapter for the federated-learning
// coordinator's control API.
package fl

import (
	"context"

	"fedgrid-hq/triton/pkg/dispatch"
	"fedgrid-hq/triton/pkg/dispatch/transport"
)

// Coordinator implements dispatch.FLCoordinator over the training
// server's REST API.
type Coordinator struct {
	client *transport.Client
}

// NewCoordinator creates an adapter for the configured coordinator.
func NewCoordinator(config transport.Config) (*Coordinator, error) {
	client, err := transport.NewClient(config)
	if err != nil {
		return nil, err
	}
	return &Coordinator{client: client}, nil
}

// AdjustTrainingParams implements dispatch.FLCoordinator.
func (c *Coordinator) AdjustTrainingParams(ctx context.Context, params dispatch.Params) error {
	return c.client.PostJSON(ctx, "/training/params", params)
}

// SelectClients implements dispatch.FLCoordinator.
func (c *Coordinator) SelectClients(ctx context.Context, params dispatch.Params) error {
	return c.client.PostJSON(ctx, "/training/clients/select", params)
}

// TriggerAggregation implements dispatch.FLCoordinator.
func (c *Coordinator) TriggerAggregation(ctx context.Context, params dispatch.Params) error {
	return c.client.PostJSON(ctx, "/training/aggregate", params)
}

// Package sdn is the HTTP adapter for the SDN controller's northbound
// API.
package sdn

import (
	"context"
	"log/slog"

	"fedgrid-hq/triton/pkg/dispatch"
	"fedgrid-hq/triton/pkg/dispatch/transport"
)

// Controller implements dispatch.SDNController over the controller's
// REST API.
type Controller struct {
	client *transport.Client
	logger *slog.Logger
}

// NewController creates an adapter for the configured controller.
func NewController(config transport.Config) (*Controller, error) {
	client, err := transport.NewClient(config)
	if err != nil {
		return nil, err
	}
	return &Controller{
		client: client,
		logger: slog.Default().With("component", "sdn_controller"),
	}, nil
}

// SetQoSClass implements dispatch.SDNController.
func (c *Controller) SetQoSClass(ctx context.Context, params dispatch.Params) error {
	return c.client.PostJSON(ctx, "/qos/classes", params)
}

// InstallFlowRule implements dispatch.SDNController.
func (c *Controller) InstallFlowRule(ctx context.Context, params dispatch.Params) error {
	return c.client.PostJSON(ctx, "/flows", params)
}

// AllocateBandwidth implements dispatch.SDNController.
func (c *Controller) AllocateBandwidth(ctx context.Context, params dispatch.Params) error {
	return c.client.PostJSON(ctx, "/bandwidth/allocations", params)
}

// RestoreState implements dispatch.SDNController. The controller keeps
// per-policy state snapshots and reverts to the one preceding the
// policy's changes.
func (c *Controller) RestoreState(ctx context.Context, policyID string, params dispatch.Params) error {
	body := map[string]interface{}{"policy_id": policyID}
	for k, v := range params {
		body[k] = v
	}
	c.logger.Info("restoring network state", "policy_id", policyID)
	return c.client.PostJSON(ctx, "/state/restore", body)
}

// Package alert delivers operator notifications through a webhook
// endpoint.
package alert

import (
	"context"
	"log/slog"
	"time"

	"fedgrid-hq/triton/pkg/dispatch"
	"fedgrid-hq/triton/pkg/dispatch/transport"
)

// Channel implements dispatch.AlertChannel against a webhook receiver
// (chat integration, pager bridge, or the ops event bus).
type Channel struct {
	client *transport.Client
	source string
}

// NewChannel creates a webhook alert channel. source tags every alert
// with the emitting system.
func NewChannel(config transport.Config, source string) (*Channel, error) {
	client, err := transport.NewClient(config)
	if err != nil {
		return nil, err
	}
	if source == "" {
		source = "triton"
	}
	return &Channel{client: client, source: source}, nil
}

// Send implements dispatch.AlertChannel.
func (c *Channel) Send(ctx context.Context, params dispatch.Params) error {
	body := map[string]interface{}{
		"source":    c.source,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range params {
		body[k] = v
	}
	return c.client.PostJSON(ctx, "/alerts", body)
}

// LogChannel is an AlertChannel that only logs, for deployments
// without a webhook receiver.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a log-only alert channel.
func NewLogChannel() *LogChannel {
	return &LogChannel{logger: slog.Default().With("component", "alerts")}
}

// Send implements dispatch.AlertChannel.
func (c *LogChannel) Send(ctx context.Context, params dispatch.Params) error {
	c.logger.Warn("alert", "parameters", map[string]interface{}(params))
	return nil
}

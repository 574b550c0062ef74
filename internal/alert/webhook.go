package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookDispatcher POSTs each event as JSON to a configured endpoint.
type WebhookDispatcher struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookDispatcher creates a new webhook dispatcher
func NewWebhookDispatcher(url string, logger *zap.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Notify delivers the event to the webhook. Failures are logged and
// dropped.
func (d *WebhookDispatcher) Notify(ctx context.Context, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		d.logger.Error("Failed to marshal alert event", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		d.logger.Error("Failed to build alert request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("Failed to deliver alert webhook",
			zap.String("event_type", string(ev.Type)),
			zap.String("node_id", ev.NodeID),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		d.logger.Error("Alert webhook rejected event",
			zap.String("event_type", string(ev.Type)),
			zap.String("node_id", ev.NodeID),
			zap.String("status", resp.Status))
	}
}

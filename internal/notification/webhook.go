package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"breakout-scanner/internal/platform/httpclient"
)

// WebhookNotifier POSTs alerts as JSON to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *httpclient.Client
}

// NewWebhookNotifier creates a webhook notifier. A nil client gets a
// default retrying client.
func NewWebhookNotifier(url string, client *httpclient.Client) *WebhookNotifier {
	if client == nil {
		client = httpclient.New(httpclient.Options{Timeout: 10 * time.Second, RequestsPerSec: 10})
	}
	return &WebhookNotifier{url: url, client: client}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

type webhookPayload struct {
	Alert
	TS string `json:"ts"`
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(webhookPayload{Alert: alert, TS: time.Now().UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	resp, err := w.client.Post(ctx, w.url, "application/json", body)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	resp.Body.Close()
	return nil
}

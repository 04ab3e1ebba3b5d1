package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Message is one rendered panel alert notification.
type Message struct {
	AlertID  string
	PanelID  string
	SectorID string
	Type     string
	Severity string
	Content  string
}

// Channel delivers notifications.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// webhookPayload keeps the chat-bot text shape and adds the alert fields
// so receivers can route without parsing the text.
type webhookPayload struct {
	MsgType string       `json:"msgtype"`
	Text    webhookText  `json:"text"`
	Alert   webhookAlert `json:"alert"`
}

type webhookText struct {
	Content string `json:"content"`
}

type webhookAlert struct {
	ID       string `json:"id"`
	PanelID  string `json:"panel_id"`
	SectorID string `json:"sector_id"`
	Type     string `json:"type"`
	Severity string `json:"severity"`
}

// WebhookChannel posts panel alerts to an HTTP endpoint.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("alert webhook: empty url")
	}
	ch := &WebhookChannel{url: url, client: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(ch)
	}
	return ch, nil
}

// Send posts msg. The alert severity is also sent as a header.
func (w *WebhookChannel) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: msg.Content},
		Alert: webhookAlert{
			ID:       msg.AlertID,
			PanelID:  msg.PanelID,
			SectorID: msg.SectorID,
			Type:     msg.Type,
			Severity: msg.Severity,
		},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Alert-Severity", msg.Severity)
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert webhook: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook: panel=%s status %d", msg.PanelID, resp.StatusCode)
	}
	return nil
}

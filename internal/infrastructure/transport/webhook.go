package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"MacroBrief/internal/config"
	"MacroBrief/internal/domain"
	"MacroBrief/internal/ports"
)

// discordContentLimit is Discord's message content cap.
const discordContentLimit = 2000

// WebhookTransport POSTs briefings as JSON to a configured webhook URL.
// Kind selects the payload shape: "discord" wraps the plain rendering
// in a content field, anything else sends the generic JSON payload.
type WebhookTransport struct {
	url    string
	kind   string
	client *http.Client
}

var _ ports.Transport = (*WebhookTransport)(nil)

// NewWebhookTransport wires the webhook client; a nil client gets a
// 30s-timeout default (the coordinator bounds calls tighter via ctx).
func NewWebhookTransport(cfg config.WebhookConfig, client *http.Client) *WebhookTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebhookTransport{url: cfg.URL, kind: cfg.Kind, client: client}
}

// Name identifies the channel in the ledger and the notification log.
func (t *WebhookTransport) Name() string { return "webhook" }

// Send POSTs the rendered briefing. Any non-2xx status is a transport
// failure.
func (t *WebhookTransport) Send(ctx context.Context, msg domain.Message) error {
	if t.url == "" {
		return fmt.Errorf("webhook transport misconfigured")
	}

	body, err := t.buildPayload(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	return nil
}

func (t *WebhookTransport) buildPayload(msg domain.Message) ([]byte, error) {
	if t.kind != "discord" {
		return msg.JSONPayload, nil
	}

	content := msg.PlainBody
	if len(content) > discordContentLimit {
		content = content[:discordContentLimit-3] + "..."
	}

	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, fmt.Errorf("marshal discord payload: %w", err)
	}
	return payload, nil
}

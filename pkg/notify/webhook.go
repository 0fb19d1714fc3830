package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EventScoreUpdated is the only event type delivered today.
const EventScoreUpdated = "handle_score.updated"

// Event is the webhook body.
type Event struct {
	Type   string  `json:"type"`
	Report *Report `json:"report"`
}

// Webhook posts score events to an HTTP endpoint.
type Webhook struct {
	client *http.Client
	url    string
	secret string
}

// NewWebhook creates a webhook notifier. When secret is set every body is
// signed with HMAC-SHA256; see Sign.
func NewWebhook(url, secret string) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		secret: secret,
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, r *Report) error {
	body, err := json.Marshal(Event{Type: EventScoreUpdated, Report: r})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", EventScoreUpdated, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handlescore/1.0")
	req.Header.Set("X-Handlescore-Event", EventScoreUpdated)
	req.Header.Set("X-Handlescore-Run", r.RunID)
	if w.secret != "" {
		req.Header.Set("X-Signature-256", Sign(w.secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver run %s: %w", r.RunID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// Sign returns the X-Signature-256 value for body: "sha256=" followed by the
// hex HMAC-SHA256 of body under secret. Receivers recompute it over the raw
// request body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

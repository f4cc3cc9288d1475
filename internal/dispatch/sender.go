// Package dispatch hands approved leads to the outbound sending system.
// The engine's contract ends at delivery of the dispatch record; actual
// email sending happens downstream.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/humtech/outreach-cli/internal/model"
	"github.com/humtech/outreach-cli/internal/resilience"
)

// Sender pushes one dispatch record to the outbound system.
type Sender interface {
	Send(ctx context.Context, record model.DispatchRecord) error
}

// WebhookSender posts dispatch records as JSON to a configured webhook.
type WebhookSender struct {
	url    string
	apiKey string
	http   *http.Client
}

// WebhookOption configures a WebhookSender.
type WebhookOption func(*WebhookSender)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) WebhookOption {
	return func(s *WebhookSender) {
		s.http = hc
	}
}

// NewWebhookSender creates a sender targeting the given webhook URL.
// apiKey may be empty for unauthenticated endpoints.
func NewWebhookSender(url, apiKey string, opts ...WebhookOption) *WebhookSender {
	s := &WebhookSender{
		url:    url,
		apiKey: apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Sender = (*WebhookSender)(nil)

// Send posts the record. Transient statuses come back as TransientError
// so the dispatcher's retry policy can distinguish them from rejections.
func (s *WebhookSender) Send(ctx context.Context, record model.DispatchRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return eris.Wrap(err, "dispatch: marshal record")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "dispatch: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "dispatch: post record"), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	sendErr := eris.Errorf("dispatch: webhook status %d: %s", resp.StatusCode, string(body))
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(sendErr, resp.StatusCode)
	}
	return sendErr
}

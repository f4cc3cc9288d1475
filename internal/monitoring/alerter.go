package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Config holds alerting thresholds and the check loop settings.
type Config struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	BlockRateThreshold   float64 `yaml:"block_rate_threshold" mapstructure:"block_rate_threshold"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ReviewBacklogMax     int     `yaml:"review_backlog_max" mapstructure:"review_backlog_max"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertBlockRate     AlertType = "block_rate"
	AlertFailureRate   AlertType = "failure_rate"
	AlertReviewBacklog AlertType = "review_backlog"
)

// minFinished is the smallest batch worth alerting on; rates computed
// from a handful of leads are noise.
const minFinished = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    Config
	client *http.Client
}

// NewAlerter creates a new Alerter with the given config.
func NewAlerter(cfg Config) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.Finished >= minFinished && a.cfg.BlockRateThreshold > 0 && snap.BlockRate > a.cfg.BlockRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertBlockRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Batch %s block rate %.1f%% exceeds threshold %.1f%% (%d blocked / %d finished)",
				snap.BatchDate, snap.BlockRate*100, a.cfg.BlockRateThreshold*100,
				snap.Blocked, snap.Finished,
			),
			Details: map[string]any{
				"batch_date": snap.BatchDate,
				"block_rate": snap.BlockRate,
				"threshold":  a.cfg.BlockRateThreshold,
				"blocked":    snap.Blocked,
				"finished":   snap.Finished,
			},
			Timestamp: now,
		})
	}

	if snap.Finished >= minFinished && a.cfg.FailureRateThreshold > 0 && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Batch %s failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished)",
				snap.BatchDate, snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.Failed, snap.Finished,
			),
			Details: map[string]any{
				"batch_date": snap.BatchDate,
				"fail_rate":  snap.FailRate,
				"threshold":  a.cfg.FailureRateThreshold,
				"failed":     snap.Failed,
				"finished":   snap.Finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.ReviewBacklogMax > 0 && snap.NeedsReview > a.cfg.ReviewBacklogMax {
		alerts = append(alerts, Alert{
			Type:     AlertReviewBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Batch %s has %d leads awaiting review (max %d)",
				snap.BatchDate, snap.NeedsReview, a.cfg.ReviewBacklogMax,
			),
			Details: map[string]any{
				"batch_date":   snap.BatchDate,
				"needs_review": snap.NeedsReview,
				"max":          a.cfg.ReviewBacklogMax,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

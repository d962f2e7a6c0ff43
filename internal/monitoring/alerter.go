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

	"github.com/sells-group/thread-intel/internal/config"
	"github.com/sells-group/thread-intel/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate AlertType = "thread_failure_rate"
	AlertBacklog     AlertType = "thread_backlog"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	TenantID  string         `json:"tenant_id"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns a Snapshot into alerts and posts them to the monitoring
// webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	policy resilience.Policy
	now    func() time.Time
}

// NewAlerter creates an Alerter. Delivery retries transient webhook errors.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	p := resilience.DefaultPolicy()
	p.OnRetry = resilience.LogRetries("monitoring webhook")
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		policy: p,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate applies the failure-rate and backlog rules to snap.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	for _, rule := range []func(*Snapshot) (Alert, bool){a.failureRate, a.backlog} {
		if alert, ok := rule(snap); ok {
			alert.TenantID = snap.TenantID
			alert.Timestamp = a.now()
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

// failureRate fires once at least MinThreads threads finished and the share
// that failed is above FailureThreshold.
func (a *Alerter) failureRate(snap *Snapshot) (Alert, bool) {
	finished := snap.Finished()
	if finished == 0 || finished < a.cfg.MinThreads || snap.FailureRate <= a.cfg.FailureThreshold {
		return Alert{}, false
	}
	return Alert{
		Type:     AlertFailureRate,
		Severity: "high",
		Message: fmt.Sprintf("Thread failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished)",
			snap.FailureRate*100, a.cfg.FailureThreshold*100, snap.Failed, finished),
		Details: map[string]any{
			"failure_rate": snap.FailureRate,
			"threshold":    a.cfg.FailureThreshold,
			"failed":       snap.Failed,
			"finished":     finished,
		},
	}, true
}

// backlog fires when more than MaxBacklog threads wait before analysis.
func (a *Alerter) backlog(snap *Snapshot) (Alert, bool) {
	if a.cfg.MaxBacklog <= 0 || snap.Backlog <= a.cfg.MaxBacklog {
		return Alert{}, false
	}
	return Alert{
		Type:     AlertBacklog,
		Severity: "medium",
		Message: fmt.Sprintf("%d threads waiting in resolving or queued stages (limit %d)",
			snap.Backlog, a.cfg.MaxBacklog),
		Details: map[string]any{
			"backlog": snap.Backlog,
			"limit":   a.cfg.MaxBacklog,
		},
	}, true
}

// SendAlerts posts each alert and returns how many were delivered. Without
// a webhook URL nothing is sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		log := zap.L().With(zap.String("type", string(alert.Type)), zap.String("tenant", alert.TenantID))
		err := resilience.Do(ctx, a.policy, func(ctx context.Context) error {
			return a.post(ctx, alert)
		})
		if err != nil {
			log.Error("monitoring: failed to send alert", zap.Error(err))
			continue
		}
		log.Info("monitoring: alert sent", zap.String("severity", alert.Severity))
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post alert")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		return resilience.NewStatusError(resp.StatusCode, eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode))
	}
	return nil
}

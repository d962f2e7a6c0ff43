package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/config"
)

// Checker runs periodic alert checks for the configured tenants.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Strings("tenants", c.cfg.Tenants),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			for _, tenant := range c.cfg.Tenants {
				c.Check(ctx, tenant)
			}
		}
	}
}

// Check collects one tenant's snapshot, evaluates it and sends any alerts.
// It returns the snapshot and alerts, or nil when collection failed.
func (c *Checker) Check(ctx context.Context, tenantID string) (*Snapshot, []Alert) {
	log := zap.L().With(zap.String("component", "monitoring.checker"), zap.String("tenant", tenantID))

	snap, err := c.collector.Collect(ctx, tenantID)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return nil, nil
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return snap, nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return snap, alerts
}

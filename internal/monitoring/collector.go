// Package monitoring watches per-tenant stage counts and sends webhook
// alerts when the pipeline looks unhealthy.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/thread-intel/internal/model"
)

// StageCounter returns per-stage thread counts for a tenant.
type StageCounter interface {
	Counts(ctx context.Context, tenantID string) (map[model.Stage]int, error)
}

// Snapshot is a point-in-time view of one tenant's pipeline.
type Snapshot struct {
	TenantID    string              `json:"tenant_id"`
	Counts      map[model.Stage]int `json:"counts"`
	Total       int                 `json:"total"`
	Completed   int                 `json:"completed"`
	Failed      int                 `json:"failed"`
	InFlight    int                 `json:"in_flight"`
	Backlog     int                 `json:"backlog"`
	FailureRate float64             `json:"failure_rate"`
	CollectedAt time.Time           `json:"collected_at"`
}

// Finished is the number of threads that reached a terminal stage.
func (s *Snapshot) Finished() int { return s.Completed + s.Failed }

// Collector builds snapshots from stage counts.
type Collector struct {
	counter StageCounter
	now     func() time.Time
}

// NewCollector creates a Collector.
func NewCollector(c StageCounter) *Collector {
	return &Collector{counter: c, now: func() time.Time { return time.Now().UTC() }}
}

// Collect reads the stage counts for tenantID.
func (c *Collector) Collect(ctx context.Context, tenantID string) (*Snapshot, error) {
	counts, err := c.counter.Counts(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "monitoring: collect stages for %s", tenantID)
	}

	snap := &Snapshot{
		TenantID:    tenantID,
		Counts:      counts,
		Completed:   counts[model.StageCompleted],
		Failed:      counts[model.StageFailed],
		InFlight:    counts[model.StageAnalyzing],
		Backlog:     counts[model.StageResolving] + counts[model.StageQueued] + counts[model.StageQueuedForAnalysis],
		CollectedAt: c.now(),
	}
	for _, n := range counts {
		snap.Total += n
	}
	if f := snap.Finished(); f > 0 {
		snap.FailureRate = float64(snap.Failed) / float64(f)
	}
	return snap, nil
}

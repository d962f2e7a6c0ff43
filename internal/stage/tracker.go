// Package stage tracks where each thread sits in the resolve/analyze lifecycle.
package stage

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/model"
	"github.com/sells-group/thread-intel/internal/store"
)

// Decision is the outcome of the eligibility check for one thread.
type Decision struct {
	Eligible bool
	Reason   string
	// Warn is set when the stored stage is not one we know about.
	Warn bool
}

// Decide reports whether a thread whose current stage is cur (present=false
// when it has no stage record) may be queued for analysis.
func Decide(cur model.Stage, present bool) Decision {
	if !present {
		return Decision{Eligible: true}
	}
	switch cur {
	case model.StageAnalyzing, model.StageQueued, model.StageQueuedForAnalysis:
		return Decision{Reason: fmt.Sprintf("already in '%s' stage", cur)}
	case model.StageCompleted:
		return Decision{Reason: "already completed"}
	case model.StageNew, model.StagePending, model.StageResolving:
		return Decision{Eligible: true}
	default:
		return Decision{Eligible: true, Warn: true}
	}
}

// Tracker reads and writes thread stages.
type Tracker struct {
	store store.StageStore
}

// NewTracker creates a Tracker backed by s.
func NewTracker(s store.StageStore) *Tracker {
	return &Tracker{store: s}
}

// Set moves every thread to stage. Writes are unconditional and idempotent.
func (t *Tracker) Set(ctx context.Context, tenantID string, st model.Stage, threadIDs ...string) error {
	if err := t.store.SetStage(ctx, tenantID, st, threadIDs...); err != nil {
		return eris.Wrapf(err, "stage: set %s", st)
	}
	return nil
}

// Get returns the current stage of each thread; threads without a record are
// absent from the map.
func (t *Tracker) Get(ctx context.Context, tenantID string, threadIDs []string) (map[string]model.Stage, error) {
	stages, err := t.store.GetStages(ctx, tenantID, threadIDs)
	if err != nil {
		return nil, eris.Wrap(err, "stage: get")
	}
	return stages, nil
}

// Gate splits threadIDs into those eligible for analysis and those to skip,
// keyed by the skip reason. Input order is preserved for eligible threads.
func (t *Tracker) Gate(ctx context.Context, tenantID string, threadIDs []string) ([]string, map[string]string, error) {
	stages, err := t.Get(ctx, tenantID, threadIDs)
	if err != nil {
		return nil, nil, err
	}
	eligible, skipped := Split(tenantID, threadIDs, stages)
	return eligible, skipped, nil
}

// Split applies Decide to each thread using stages read earlier.
func Split(tenantID string, threadIDs []string, stages map[string]model.Stage) ([]string, map[string]string) {
	log := zap.L().With(zap.String("tenant", tenantID))

	var eligible []string
	skipped := make(map[string]string)
	for _, id := range threadIDs {
		cur, ok := stages[id]
		d := Decide(cur, ok)
		if d.Warn {
			log.Warn("stage: unknown stage, treating as eligible",
				zap.String("thread_id", id), zap.String("stage", string(cur)))
		}
		if !d.Eligible {
			skipped[id] = d.Reason
			continue
		}
		eligible = append(eligible, id)
	}
	return eligible, skipped
}

// Counts returns the number of threads per stage for a tenant. Every known
// stage is present in the result.
func (t *Tracker) Counts(ctx context.Context, tenantID string) (map[model.Stage]int, error) {
	counts, err := t.store.CountStages(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "stage: counts")
	}
	for _, s := range model.Stages {
		if _, ok := counts[s]; !ok {
			counts[s] = 0
		}
	}
	return counts, nil
}

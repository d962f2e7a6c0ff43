// Package dispatch starts analysis jobs for resolved threads over a
// configurable transport.
package dispatch

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/thread-intel/internal/model"
)

// Transport names.
const (
	TransportDirect   = "direct"
	TransportWebhook  = "webhook"
	TransportTemporal = "temporal"
)

// Trigger starts one job. Implementations must be safe for concurrent use.
type Trigger interface {
	Trigger(ctx context.Context, task string, payload model.AnalyzePayload) error
}

// TriggerFunc adapts a function to Trigger.
type TriggerFunc func(ctx context.Context, task string, payload model.AnalyzePayload) error

// Trigger calls f.
func (f TriggerFunc) Trigger(ctx context.Context, task string, payload model.AnalyzePayload) error {
	return f(ctx, task, payload)
}

// Analyzer runs one thread analysis.
type Analyzer interface {
	Analyze(ctx context.Context, tenantID, threadID string) *model.AnalysisReport
}

// Direct runs the analysis in-process and waits for it.
type Direct struct {
	analyzer Analyzer
}

// NewDirect creates a Direct trigger.
func NewDirect(a Analyzer) *Direct {
	return &Direct{analyzer: a}
}

// Trigger runs the analysis. A failed analysis is returned as an error; the
// thread's stage has already been set to failed by then.
func (d *Direct) Trigger(ctx context.Context, task string, payload model.AnalyzePayload) error {
	if task != model.TaskAnalyzeThread {
		return eris.Errorf("dispatch: unknown task %q", task)
	}
	rep := d.analyzer.Analyze(ctx, payload.TenantID, payload.ThreadID)
	if !rep.Success {
		return eris.Errorf("dispatch: analysis of thread %s failed: %s", payload.ThreadID, strings.Join(rep.Errors, "; "))
	}
	return nil
}

// Package jobs runs thread analysis as a Temporal workflow.
package jobs

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/thread-intel/internal/model"
)

// WorkflowName is the registered name of the analysis workflow.
const WorkflowName = "AnalyzeThread"

// ActivityName is the registered name of the analysis activity.
const ActivityName = "AnalyzeThreadActivity"

// Analyzer runs one thread analysis.
type Analyzer interface {
	Analyze(ctx context.Context, tenantID, threadID string) *model.AnalysisReport
}

// Activities holds the activity implementations registered on the worker.
type Activities struct {
	Analyzer Analyzer
}

// AnalyzeThread runs the analysis engine. The engine records its own
// failures on the thread, so a failed report is returned as a result and
// never retried.
func (a *Activities) AnalyzeThread(ctx context.Context, p model.AnalyzePayload) (*model.AnalysisReport, error) {
	activity.GetLogger(ctx).Info("analyzing thread", "tenant", p.TenantID, "thread_id", p.ThreadID)
	return a.Analyzer.Analyze(ctx, p.TenantID, p.ThreadID), nil
}

// AnalyzeThread is the workflow started for every queued thread.
func AnalyzeThread(ctx workflow.Context, p model.AnalyzePayload) (*model.AnalysisReport, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var rep model.AnalysisReport
	if err := workflow.ExecuteActivity(ctx, ActivityName, p).Get(ctx, &rep); err != nil {
		return nil, err
	}
	workflow.GetLogger(ctx).Info("thread analysis finished",
		"thread_id", p.ThreadID,
		"success", rep.Success,
		"skipped", rep.Skipped,
	)
	return &rep, nil
}

// WorkflowID is deterministic so a thread has at most one running analysis.
func WorkflowID(p model.AnalyzePayload) string {
	return "analyze-thread-" + p.TenantID + "-" + p.ThreadID
}

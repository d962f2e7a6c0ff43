package jobs

import (
	"context"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/config"
	"github.com/sells-group/thread-intel/internal/model"
)

// Dial connects to the Temporal frontend described by cfg.
func Dial(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    newLogger(zap.L()),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "jobs: dial temporal %s", cfg.HostPort)
	}
	return c, nil
}

// Starter is the subset of client.Client used to start workflows.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow any, args ...any) (client.WorkflowRun, error)
}

// Trigger starts the analysis workflow on a task queue.
type Trigger struct {
	starter   Starter
	taskQueue string
}

// NewTrigger creates a Temporal trigger.
func NewTrigger(s Starter, taskQueue string) *Trigger {
	return &Trigger{starter: s, taskQueue: taskQueue}
}

// Trigger starts the workflow without waiting for it.
func (t *Trigger) Trigger(ctx context.Context, task string, p model.AnalyzePayload) error {
	if task != model.TaskAnalyzeThread {
		return eris.Errorf("jobs: unknown task %q", task)
	}
	run, err := t.starter.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(p),
		TaskQueue: t.taskQueue,
	}, WorkflowName, p)
	if err != nil {
		return eris.Wrapf(err, "jobs: start workflow for thread %s", p.ThreadID)
	}
	zap.L().Info("jobs: workflow started",
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
	)
	return nil
}

// NewWorker registers the workflow and activity on taskQueue.
func NewWorker(c client.Client, taskQueue string, concurrency int, a Analyzer) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: concurrency,
	})
	w.RegisterWorkflowWithOptions(AnalyzeThread, workflow.RegisterOptions{Name: WorkflowName})
	acts := &Activities{Analyzer: a}
	w.RegisterActivityWithOptions(acts.AnalyzeThread, activity.RegisterOptions{Name: ActivityName})
	return w
}

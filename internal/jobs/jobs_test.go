package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/model"
)

type fakeAnalyzer struct {
	got model.AnalyzePayload
}

func (f *fakeAnalyzer) Analyze(_ context.Context, tenantID, threadID string) *model.AnalysisReport {
	f.got = model.AnalyzePayload{TenantID: tenantID, ThreadID: threadID}
	score := 1
	return &model.AnalysisReport{
		Success:        true,
		ThreadID:       threadID,
		Mode:           model.ModeFull,
		SentimentScore: &score,
		Errors:         []string{},
	}
}

func TestAnalyzeThreadWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	fa := &fakeAnalyzer{}
	acts := &Activities{Analyzer: fa}
	env.RegisterActivityWithOptions(acts.AnalyzeThread, activity.RegisterOptions{Name: ActivityName})

	p := model.AnalyzePayload{TenantID: "t1", ThreadID: "th1"}
	env.ExecuteWorkflow(AnalyzeThread, p)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var rep model.AnalysisReport
	require.NoError(t, env.GetWorkflowResult(&rep))
	assert.True(t, rep.Success)
	assert.Equal(t, "th1", rep.ThreadID)
	require.NotNil(t, rep.SentimentScore)
	assert.Equal(t, 1, *rep.SentimentScore)
	assert.Equal(t, p, fa.got)
}

func TestAnalyzeThreadActivity(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()

	acts := &Activities{Analyzer: &fakeAnalyzer{}}
	env.RegisterActivity(acts.AnalyzeThread)

	val, err := env.ExecuteActivity(acts.AnalyzeThread, model.AnalyzePayload{TenantID: "t1", ThreadID: "th2"})
	require.NoError(t, err)
	var rep model.AnalysisReport
	require.NoError(t, val.Get(&rep))
	assert.Equal(t, "th2", rep.ThreadID)
}

type fakeStarter struct {
	opts client.StartWorkflowOptions
	wf   any
	args []any
	err  error
}

func (f *fakeStarter) ExecuteWorkflow(_ context.Context, opts client.StartWorkflowOptions, wf any, args ...any) (client.WorkflowRun, error) {
	f.opts, f.wf, f.args = opts, wf, args
	if f.err != nil {
		return nil, f.err
	}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return(opts.ID)
	run.On("GetRunID").Return("run-1")
	return run, nil
}

func TestTrigger(t *testing.T) {
	s := &fakeStarter{}
	tr := NewTrigger(s, "thread-intel")
	p := model.AnalyzePayload{TenantID: "t1", ThreadID: "th1"}

	require.NoError(t, tr.Trigger(context.Background(), model.TaskAnalyzeThread, p))
	assert.Equal(t, "analyze-thread-t1-th1", s.opts.ID)
	assert.Equal(t, "thread-intel", s.opts.TaskQueue)
	assert.Equal(t, WorkflowName, s.wf)
	assert.Equal(t, []any{p}, s.args)

	assert.Error(t, tr.Trigger(context.Background(), "other", p))

	s.err = errors.New("frontend unavailable")
	err := tr.Trigger(context.Background(), model.TaskAnalyzeThread, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start workflow for thread th1")
}

func TestZapLoggerFields(t *testing.T) {
	f := fields([]any{"a", 1, "b", "two", "dangling"})
	require.Len(t, f, 3)
	assert.Equal(t, "a", f[0].Key)
	assert.Equal(t, "b", f[1].Key)
	assert.Equal(t, "extra", f[2].Key)

	l := newLogger(zap.NewNop()).With("k", "v")
	l.Info("ok", "x", 1)
}

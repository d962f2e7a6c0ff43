package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/thread-intel/internal/model"
	"github.com/sells-group/thread-intel/internal/resilience"
)

func fastPolicy() resilience.Policy {
	return resilience.Policy{Attempts: 3, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestWebhook_PostsJob(t *testing.T) {
	var got webhookBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"run_1"}`))
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "secret", time.Second, fastPolicy())
	err := wh.Trigger(context.Background(), model.TaskAnalyzeThread, model.AnalyzePayload{TenantID: "t1", ThreadID: "th1"})
	require.NoError(t, err)
	assert.Equal(t, "analyze-thread", got.TaskID)
	assert.Equal(t, "t1", got.Payload.TenantID)
	assert.Equal(t, "th1", got.Payload.ThreadID)
}

func TestWebhook_WireFormat(t *testing.T) {
	b, err := json.Marshal(webhookBody{TaskID: model.TaskAnalyzeThread, Payload: model.AnalyzePayload{TenantID: "u", ThreadID: "t"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"taskId":"analyze-thread","payload":{"user_id":"u","thread_id":"t"}}`, string(b))
}

func TestWebhook_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "k", time.Second, fastPolicy())
	require.NoError(t, wh.Trigger(context.Background(), model.TaskAnalyzeThread, model.AnalyzePayload{ThreadID: "th"}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhook_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "wrong", time.Second, fastPolicy())
	err := wh.Trigger(context.Background(), model.TaskAnalyzeThread, model.AnalyzePayload{ThreadID: "th"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), calls.Load())

	var se *resilience.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

type fakeAnalyzer struct {
	report *model.AnalysisReport
	calls  atomic.Int32
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _, threadID string) *model.AnalysisReport {
	f.calls.Add(1)
	rep := *f.report
	rep.ThreadID = threadID
	return &rep
}

func TestDirect(t *testing.T) {
	ok := &fakeAnalyzer{report: &model.AnalysisReport{Success: true}}
	d := NewDirect(ok)
	require.NoError(t, d.Trigger(context.Background(), model.TaskAnalyzeThread, model.AnalyzePayload{ThreadID: "th"}))
	assert.Equal(t, int32(1), ok.calls.Load())

	assert.Error(t, d.Trigger(context.Background(), "other-task", model.AnalyzePayload{ThreadID: "th"}))

	failing := NewDirect(&fakeAnalyzer{report: &model.AnalysisReport{Errors: []string{"boom"}}})
	err := failing.Trigger(context.Background(), model.TaskAnalyzeThread, model.AnalyzePayload{ThreadID: "th"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestDispatcher_Fallback(t *testing.T) {
	primaryErr := errors.New("temporal unavailable")
	var fallbackCalls atomic.Int32
	primary := TriggerFunc(func(context.Context, string, model.AnalyzePayload) error { return primaryErr })
	fallback := TriggerFunc(func(_ context.Context, task string, p model.AnalyzePayload) error {
		assert.Equal(t, model.TaskAnalyzeThread, task)
		assert.Equal(t, "t1", p.TenantID)
		fallbackCalls.Add(1)
		return nil
	})

	d := NewDispatcher(TransportTemporal, primary, WithFallback(TransportDirect, fallback))
	assert.Equal(t, TransportTemporal, d.Transport())
	out := d.Dispatch(context.Background(), "t1", "th1")
	assert.NoError(t, out.Err)
	assert.Equal(t, TransportDirect, out.Transport)
	assert.Equal(t, int32(1), fallbackCalls.Load())

	noFallback := NewDispatcher(TransportTemporal, primary)
	out = noFallback.Dispatch(context.Background(), "t1", "th1")
	assert.ErrorIs(t, out.Err, primaryErr)
	assert.Equal(t, TransportTemporal, out.Transport)
}

func TestDispatcher_DispatchAll(t *testing.T) {
	var inFlight, peak atomic.Int32
	primary := TriggerFunc(func(_ context.Context, _ string, p model.AnalyzePayload) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if p.ThreadID == "bad" {
			return errors.New("rejected")
		}
		return nil
	})

	d := NewDispatcher(TransportWebhook, primary, WithConcurrency(2))
	ids := []string{"a", "bad", "c", "d", "e"}
	out := d.DispatchAll(context.Background(), "t1", ids)

	require.Len(t, out, len(ids))
	for i, o := range out {
		assert.Equal(t, ids[i], o.ThreadID)
		if o.ThreadID == "bad" {
			assert.Error(t, o.Err)
		} else {
			assert.NoError(t, o.Err)
		}
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

package monitoring

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

	"github.com/sells-group/thread-intel/internal/config"
	"github.com/sells-group/thread-intel/internal/model"
)

type fakeCounter struct {
	counts map[model.Stage]int
	err    error
}

func (f fakeCounter) Counts(context.Context, string) (map[model.Stage]int, error) {
	return f.counts, f.err
}

func TestCollector_Collect(t *testing.T) {
	c := NewCollector(fakeCounter{counts: map[model.Stage]int{
		model.StageNew:       3,
		model.StageResolving: 1,
		model.StageQueued:    2,
		model.StageAnalyzing: 1,
		model.StageCompleted: 6,
		model.StageFailed:    2,
	}})
	fixed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	snap, err := c.Collect(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 15, snap.Total)
	assert.Equal(t, 8, snap.Finished())
	assert.Equal(t, 3, snap.Backlog)
	assert.Equal(t, 1, snap.InFlight)
	assert.InDelta(t, 0.25, snap.FailureRate, 0.0001)
	assert.Equal(t, fixed, snap.CollectedAt)

	_, err = NewCollector(fakeCounter{err: errors.New("db down")}).Collect(context.Background(), "t1")
	assert.ErrorContains(t, err, "collect stages for t1")
}

func TestAlerter_Evaluate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureThreshold: 0.2, MinThreads: 5, MaxBacklog: 10})

	tests := []struct {
		name  string
		snap  Snapshot
		types []AlertType
	}{
		{name: "healthy", snap: Snapshot{Completed: 9, Failed: 1, FailureRate: 0.1}},
		{name: "too few finished", snap: Snapshot{Completed: 1, Failed: 3, FailureRate: 0.75}},
		{name: "failure rate", snap: Snapshot{Completed: 6, Failed: 4, FailureRate: 0.4}, types: []AlertType{AlertFailureRate}},
		{name: "backlog", snap: Snapshot{Backlog: 11}, types: []AlertType{AlertBacklog}},
		{name: "both", snap: Snapshot{Completed: 5, Failed: 5, FailureRate: 0.5, Backlog: 50}, types: []AlertType{AlertFailureRate, AlertBacklog}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := a.Evaluate(&tt.snap)
			var got []AlertType
			for _, al := range alerts {
				got = append(got, al.Type)
			}
			assert.Equal(t, tt.types, got)
		})
	}

	alerts := a.Evaluate(&Snapshot{TenantID: "t1", Completed: 6, Failed: 4, FailureRate: 0.4})
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Equal(t, "t1", alerts[0].TenantID)
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received, rejected atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var al Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&al))
		if al.Type == AlertBacklog {
			rejected.Add(1)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	a.policy.Backoff = time.Millisecond
	a.policy.MaxBackoff = 5 * time.Millisecond
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate}, {Type: AlertBacklog}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), received.Load())
	// 502 is transient, so the backlog alert is retried up to the policy limit.
	assert.Equal(t, int32(3), rejected.Load())

	assert.Zero(t, NewAlerter(config.MonitoringConfig{}).SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate}}))
}

func TestChecker_Check(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := config.MonitoringConfig{WebhookURL: srv.URL, FailureThreshold: 0.1, MinThreads: 1}
	counter := fakeCounter{counts: map[model.Stage]int{model.StageCompleted: 1, model.StageFailed: 1}}
	c := NewChecker(NewCollector(counter), NewAlerter(cfg), cfg)

	snap, alerts := c.Check(context.Background(), "t1")
	require.NotNil(t, snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, int32(1), hits.Load())

	failing := NewChecker(NewCollector(fakeCounter{err: errors.New("x")}), NewAlerter(cfg), cfg)
	snap, alerts = failing.Check(context.Background(), "t1")
	assert.Nil(t, snap)
	assert.Nil(t, alerts)
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 3600}
	c := NewChecker(NewCollector(fakeCounter{}), NewAlerter(cfg), cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checker did not stop")
	}
}

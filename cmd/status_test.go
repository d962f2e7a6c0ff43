package main

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/thread-intel/internal/model"
	"github.com/sells-group/thread-intel/internal/monitoring"
)

func TestPrintStatus_FlagsUnknownStages(t *testing.T) {
	snap := &monitoring.Snapshot{
		TenantID: "tenant-1",
		Counts: map[model.Stage]int{
			model.StageCompleted: 3,
			model.StageFailed:    1,
			"archived":           2,
			"backfill":           1,
		},
		Total:       7,
		Completed:   3,
		Failed:      1,
		FailureRate: 0.25,
	}
	alerts := []monitoring.Alert{{Type: monitoring.AlertFailureRate, Message: "failure rate 25.0% above 10.0%"}}

	var buf bytes.Buffer
	printStatus(&buf, snap, alerts)
	out := buf.String()

	assert.Contains(t, out, "tenant tenant-1: 7 threads")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, fmt.Sprintf("  %-22s %d\n", model.StageCompleted, 3))
	assert.Contains(t, out, fmt.Sprintf("  %-22s %d (unknown stage)\n", "archived", 2))
	assert.Contains(t, out, fmt.Sprintf("  %-22s %d (unknown stage)\n", "backfill", 1))
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("archived")), bytes.Index(buf.Bytes(), []byte("backfill")))
	assert.Contains(t, out, "failure rate: 25.0% (1 of 4 finished)")
	assert.Contains(t, out, "ALERT thread_failure_rate: failure rate 25.0% above 10.0%")
}

func TestPrintStatus_KnownStagesOnly(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, &monitoring.Snapshot{TenantID: "t", Counts: map[model.Stage]int{model.StageNew: 2}, Total: 2}, nil)
	assert.NotContains(t, buf.String(), "unknown stage")
	assert.NotContains(t, buf.String(), "ALERT")
}

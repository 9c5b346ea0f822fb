package runlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/taskq/internal/clock"
)

func testClock() *clock.Fake {
	return clock.NewFake(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), 9)
}

func TestNewTraceID(t *testing.T) {
	id := NewTraceID()
	assert.True(t, strings.HasPrefix(id, "trace-"))
	assert.Len(t, id, len("trace-")+12)
	assert.NotEqual(t, id, NewTraceID())
}

func TestEmitAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "runs.jsonl")
	l := &Logger{Path: path, Clock: testClock()}

	require.NoError(t, l.Emit(Entry{Event: EventRunStart, TraceID: "trace-abc", Command: "queue.pick", Status: "ok"}))
	require.NoError(t, l.Emit(Entry{Event: EventRunEnd, TraceID: "trace-abc", Command: "queue.pick", ExitCode: 0, Status: "ok", DurationMS: 42}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"event":"run_start"`)
	assert.Contains(t, lines[0], `"ts_wall":"2026-01-02 19:00"`)
	assert.Contains(t, lines[1], `"duration_ms":42`)

	records, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "trace-abc", records[1]["trace_id"])
}

func TestReadAllSkipsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	content := `{"event":"run_end","exit_code":0,"duration_ms":10}
not json at all
{"event":"run_end","exit_code":1,"duration_ms":20}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := ReadAll(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadAllMissingFile(t *testing.T) {
	records, err := ReadAll(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestAggregate(t *testing.T) {
	records := []map[string]any{
		{"event": "run_start", "exit_code": float64(0)},
		{"event": "run_end", "exit_code": float64(0), "duration_ms": float64(100)},
		{"event": "run_end", "exit_code": float64(0), "duration_ms": float64(200)},
		{"event": "run_end", "exit_code": float64(1), "duration_ms": float64(300)},
	}
	kpi := Aggregate(records)
	assert.Equal(t, 3, kpi.TotalRuns)
	assert.Equal(t, 2, kpi.SuccessRuns)
	assert.InDelta(t, 0.6667, kpi.SuccessRate, 0.0001)
	assert.InDelta(t, 200.0, kpi.AvgDurationMS, 0.001)
	assert.InDelta(t, 200.0, kpi.P95DurationMS, 0.001) // index int(2*0.95) = 1
}

func TestAggregateEmpty(t *testing.T) {
	kpi := Aggregate(nil)
	assert.Zero(t, kpi.TotalRuns)
	assert.Zero(t, kpi.SuccessRate)
	assert.Zero(t, kpi.AvgDurationMS)
}

func TestFinalizeAlerts(t *testing.T) {
	kpi := Finalize(KPI{TotalRuns: 10, SuccessRuns: 5, SuccessRate: 0.5}, 3, 2, DefaultThresholds())
	assert.Equal(t, 3, kpi.RetryCount)
	assert.Equal(t, 2, kpi.StaleCount)
	require.Len(t, kpi.Alerts, 2)
	assert.Equal(t, "failure_rate=0.5000 exceeds 0.2000", kpi.Alerts[0])
	assert.Equal(t, "stale_in_progress=2 exceeds 0", kpi.Alerts[1])
}

func TestFinalizeLatencyAlert(t *testing.T) {
	kpi := Finalize(KPI{TotalRuns: 5, SuccessRuns: 5, SuccessRate: 1, P95DurationMS: 2500}, 0, 0, DefaultThresholds())
	require.Len(t, kpi.Alerts, 1)
	assert.Equal(t, "latency_p95_ms=2500 exceeds 2000", kpi.Alerts[0])
}

func TestFinalizeCustomThresholds(t *testing.T) {
	t.Run("loose bounds silence alerts", func(t *testing.T) {
		loose := Thresholds{MaxFailureRate: 1.0, MaxLatencyP95MS: 10000, MaxStaleInProgress: 5}
		kpi := Finalize(KPI{TotalRuns: 10, SuccessRuns: 2, SuccessRate: 0.2, P95DurationMS: 9000}, 0, 3, loose)
		assert.Empty(t, kpi.Alerts)
	})
	t.Run("tight bounds trip them", func(t *testing.T) {
		tight := Thresholds{MaxFailureRate: 0.05, MaxLatencyP95MS: 50, MaxStaleInProgress: 0}
		kpi := Finalize(KPI{TotalRuns: 10, SuccessRuns: 9, SuccessRate: 0.9, P95DurationMS: 100}, 0, 1, tight)
		assert.Len(t, kpi.Alerts, 3)
	})
}

func TestFinalizeNoAlerts(t *testing.T) {
	kpi := Finalize(KPI{TotalRuns: 10, SuccessRuns: 9, SuccessRate: 0.9}, 1, 0, DefaultThresholds())
	assert.Empty(t, kpi.Alerts)

	// No runs at all never trips the failure-rate check.
	kpi = Finalize(KPI{}, 0, 0, DefaultThresholds())
	assert.Empty(t, kpi.Alerts)
}

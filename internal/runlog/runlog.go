// Package runlog appends command run records to a JSONL file and aggregates
// them into operator KPIs. The log is append-only; malformed lines are
// tolerated and skipped during aggregation.
package runlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ManuGH/taskq/internal/clock"
)

// Run lifecycle events.
const (
	EventRunStart = "run_start"
	EventRunEnd   = "run_end"
)

// NewTraceID returns a fresh trace id of the form trace-<12 hex chars>.
func NewTraceID() string {
	return "trace-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Entry is one run record.
type Entry struct {
	Event      string
	TraceID    string
	Command    string
	ExitCode   int
	Status     string // "ok" or "error"
	ItemID     string
	DurationMS int64
	Error      string
}

// Logger appends entries to one JSONL file.
type Logger struct {
	Path  string
	Clock clock.Clock
}

// Emit appends one record. Timestamps come from the logger's clock: ts_wall in
// the display zone, ts_epoch_ms in UTC.
func (l *Logger) Emit(e Entry) error {
	record := map[string]any{
		"ts_wall":     l.Clock.NowWall(),
		"ts_epoch_ms": l.Clock.Now().UTC().UnixMilli(),
		"event":       e.Event,
		"trace_id":    e.TraceID,
		"command":     e.Command,
		"exit_code":   e.ExitCode,
		"status":      e.Status,
		"item_id":     e.ItemID,
		"duration_ms": e.DurationMS,
		"error":       e.Error,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("runlog: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.Path), 0o750); err != nil {
		return fmt.Errorf("runlog: create dir: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 -- configured log path
	if err != nil {
		return fmt.Errorf("runlog: open %s: %w", l.Path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("runlog: append: %w", err)
	}
	return nil
}

// ReadAll parses the JSONL file. Malformed lines are skipped, not fatal; a
// missing file reads as empty.
func ReadAll(path string) ([]map[string]any, error) {
	f, err := os.Open(path) // #nosec G304 -- configured log path
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}

// Default alert thresholds for ops kpi.
const (
	DefaultMaxFailureRate     = 0.2
	DefaultMaxLatencyP95MS    = 2000
	DefaultMaxStaleInProgress = 0
)

// Thresholds bound the KPI alert checks. Every bound is a maximum; crossing
// it produces one alert line.
type Thresholds struct {
	MaxFailureRate     float64
	MaxLatencyP95MS    float64
	MaxStaleInProgress int
}

// DefaultThresholds returns the stock alert bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxFailureRate:     DefaultMaxFailureRate,
		MaxLatencyP95MS:    DefaultMaxLatencyP95MS,
		MaxStaleInProgress: DefaultMaxStaleInProgress,
	}
}

// KPI summarizes run_end records plus queue-derived counters.
type KPI struct {
	TotalRuns     int
	SuccessRuns   int
	SuccessRate   float64 // rounded to 4 decimals
	AvgDurationMS float64 // rounded to 2 decimals
	P95DurationMS float64
	RetryCount    int
	StaleCount    int
	Alerts        []string
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Aggregate computes run KPIs from parsed records. Only run_end records count;
// a run succeeds when its exit_code is 0. P95 is the element at index
// int((n-1)*0.95) of the sorted durations.
func Aggregate(records []map[string]any) KPI {
	var kpi KPI
	var durations []float64

	for _, rec := range records {
		if rec["event"] != EventRunEnd {
			continue
		}
		kpi.TotalRuns++
		if code, ok := asFloat(rec["exit_code"]); ok && code == 0 {
			kpi.SuccessRuns++
		}
		if d, ok := asFloat(rec["duration_ms"]); ok {
			durations = append(durations, d)
		}
	}

	if kpi.TotalRuns > 0 {
		kpi.SuccessRate = round(float64(kpi.SuccessRuns)/float64(kpi.TotalRuns), 4)
	}
	if len(durations) > 0 {
		sum := 0.0
		for _, d := range durations {
			sum += d
		}
		kpi.AvgDurationMS = round(sum/float64(len(durations)), 2)
		sort.Float64s(durations)
		kpi.P95DurationMS = durations[int(float64(len(durations)-1)*0.95)]
	}
	return kpi
}

// Finalize fills the queue-derived counters and evaluates the alert bounds.
// The failure-rate check is skipped when there are no runs to rate. Alerts
// only change the exit code when the caller asks for it (--fail-on-alert).
func Finalize(kpi KPI, retryCount, staleCount int, t Thresholds) KPI {
	kpi.RetryCount = retryCount
	kpi.StaleCount = staleCount

	if kpi.TotalRuns > 0 {
		failureRate := 1 - kpi.SuccessRate
		if failureRate > t.MaxFailureRate {
			kpi.Alerts = append(kpi.Alerts, fmt.Sprintf("failure_rate=%.4f exceeds %.4f", failureRate, t.MaxFailureRate))
		}
	}
	if kpi.P95DurationMS > t.MaxLatencyP95MS {
		kpi.Alerts = append(kpi.Alerts, fmt.Sprintf("latency_p95_ms=%.0f exceeds %.0f", kpi.P95DurationMS, t.MaxLatencyP95MS))
	}
	if staleCount > t.MaxStaleInProgress {
		kpi.Alerts = append(kpi.Alerts, fmt.Sprintf("stale_in_progress=%d exceeds %d", staleCount, t.MaxStaleInProgress))
	}
	return kpi
}

// Package watchdog sweeps the queue for items stuck by crashed or wedged
// workers: FAILED and lease-expired IN_PROGRESS items with attempts left are
// retried, and IN_PROGRESS items stale past the configured age are reset.
package watchdog

import (
	"context"
	"time"

	"github.com/ManuGH/taskq/internal/clock"
	"github.com/ManuGH/taskq/internal/log"
	"github.com/ManuGH/taskq/internal/metrics"
	"github.com/ManuGH/taskq/internal/queue"
)

// Watchdog runs periodic recovery sweeps over one store.
type Watchdog struct {
	Store         *queue.Store
	Clock         clock.Clock
	Interval      time.Duration
	StaleMinutes  int
	TZOffsetHours int
}

// SweepResult reports one sweep.
type SweepResult struct {
	Retried    []string
	StaleReset []string
}

// Empty reports whether the sweep found nothing to recover.
func (r SweepResult) Empty() bool {
	return len(r.Retried) == 0 && len(r.StaleReset) == 0
}

// RunOnce performs a single sweep: retry-eligible recovery first, then stale
// IN_PROGRESS reset by started_at age.
func (w *Watchdog) RunOnce(ctx context.Context) (SweepResult, error) {
	logger := log.WithComponentFromContext(ctx, "watchdog")
	metrics.WatchdogSweepsTotal.Inc()

	var res SweepResult
	retried, err := w.Store.RetryEligible(ctx, w.Clock.NowEpoch())
	if err != nil {
		return res, err
	}
	res.Retried = retried

	stale, err := w.resetStale(ctx)
	if err != nil {
		return res, err
	}
	res.StaleReset = stale

	if res.Empty() {
		logger.Info().Msg("watchdog sweep: NOOP")
	} else {
		logger.Info().
			Strs("retried", res.Retried).
			Strs("stale_reset", res.StaleReset).
			Msg("watchdog sweep: RESET")
	}
	return res, nil
}

// resetStale requeues IN_PROGRESS items whose started_at is older than the
// stale threshold. Items without a parseable started_at are left alone.
func (w *Watchdog) resetStale(ctx context.Context) ([]string, error) {
	if w.StaleMinutes <= 0 {
		return nil, nil
	}
	items, err := w.Store.List(ctx, queue.Filter{Status: queue.StatusInProgress})
	if err != nil {
		return nil, err
	}

	cutoff := time.Duration(w.StaleMinutes) * time.Minute
	now := w.Clock.Now()
	var reset []string
	for _, it := range items {
		started, ok := clock.ParseWall(it.StartedAt, w.TZOffsetHours)
		if !ok {
			continue
		}
		if now.Sub(started) < cutoff {
			continue
		}
		notes := queue.AppendNote(it.Notes, "[watchdog] stale reset")
		if err := w.Store.Requeue(ctx, it.ID, notes); err != nil {
			return reset, err
		}
		if _, err := w.Store.AppendEvent(ctx, it.ID, queue.EventRetried, map[string]any{"reason": "stale_reset"}); err != nil {
			return reset, err
		}
		reset = append(reset, it.ID)
	}
	return reset, nil
}

// Run sweeps on the configured interval until ctx is cancelled. The first
// sweep happens after one interval, not immediately.
func (w *Watchdog) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = 2 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := log.WithComponentFromContext(ctx, "watchdog")
	logger.Info().Dur("interval", interval).Msg("watchdog started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("watchdog stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				logger.Error().Err(err).Msg("watchdog sweep failed")
			}
		}
	}
}

// Package route applies review verdicts and operator actions as state
// transitions on the queue store, writing the matching audit events.
package route

import (
	"context"
	"fmt"
	"strings"

	"github.com/ManuGH/taskq/internal/gate"
	"github.com/ManuGH/taskq/internal/log"
	"github.com/ManuGH/taskq/internal/metrics"
	"github.com/ManuGH/taskq/internal/queue"
)

// Apply routes a review verdict: PASS -> DONE, RETRY -> PENDING with attempt
// accounting, BLOCK -> BLOCKED. It returns the resulting status.
func Apply(ctx context.Context, store *queue.Store, id string, v gate.Verdict, maxRetries int) (queue.Status, error) {
	row, err := store.Get(ctx, id)
	if err != nil {
		return "", err
	}

	metrics.ReviewVerdictsTotal.WithLabelValues(v.Verdict).Inc()
	logger := log.WithComponentFromContext(ctx, "route")

	switch v.Verdict {
	case gate.Pass:
		notes := queue.AppendNote(row.Notes, "review:PASS "+strings.Join(v.Reasons, ";"))
		if err := store.MarkDone(ctx, id, notes); err != nil {
			return "", err
		}
		if _, err := store.AppendEvent(ctx, id, queue.EventReviewGate, map[string]any{
			"verdict": gate.Pass,
			"reasons": v.Reasons,
		}); err != nil {
			return "", err
		}
		logger.Info().Str(log.FieldItemID, id).Str(log.FieldVerdict, v.Verdict).Msg("review routed")
		return queue.StatusDone, nil

	case gate.Retry:
		// The gate promotes to BLOCK at the limit, so attempts stay capped.
		attempts := row.AttemptCount + 1
		if attempts > maxRetries {
			attempts = maxRetries
		}
		notes := queue.AppendNote(row.Notes,
			fmt.Sprintf("review:RETRY attempt=%d/%d missing=%s", attempts, maxRetries, strings.Join(v.MissingChecks, ",")))
		if err := store.RequeueWithAttempts(ctx, id, notes, attempts); err != nil {
			return "", err
		}
		if _, err := store.AppendEvent(ctx, id, queue.EventReviewGate, map[string]any{
			"verdict":        gate.Retry,
			"attempt":        attempts,
			"max_retries":    maxRetries,
			"missing_checks": v.MissingChecks,
		}); err != nil {
			return "", err
		}
		logger.Info().Str(log.FieldItemID, id).Str(log.FieldVerdict, v.Verdict).Int("attempt", attempts).Msg("review routed")
		return queue.StatusPending, nil

	default:
		reason := strings.Join(v.Reasons, ";")
		if reason == "" {
			reason = "review_gate_blocked"
		}
		notes := queue.AppendNote(row.Notes, "review:BLOCK "+reason)
		if err := store.MarkBlocked(ctx, id, notes); err != nil {
			return "", err
		}
		if _, err := store.AppendEvent(ctx, id, queue.EventReviewGate, map[string]any{
			"verdict": gate.Block,
			"reasons": v.Reasons,
		}); err != nil {
			return "", err
		}
		logger.Info().Str(log.FieldItemID, id).Str(log.FieldVerdict, v.Verdict).Msg("review routed")
		return queue.StatusBlocked, nil
	}
}

// Cancel blocks an active item on operator request. Terminal DONE and FAILED
// items cannot be cancelled.
func Cancel(ctx context.Context, store *queue.Store, id string) (queue.Status, error) {
	row, err := store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if row.Status == queue.StatusDone || row.Status == queue.StatusFailed {
		return "", fmt.Errorf("%w: cannot cancel terminal item: %s (%s)", queue.ErrInvalidTransition, id, row.Status)
	}
	notes := queue.AppendNote(row.Notes, "cancelled_by_operator")
	if err := store.MarkBlocked(ctx, id, notes); err != nil {
		return "", err
	}
	return queue.StatusBlocked, nil
}

// Replan records an operator replan note. An IN_PROGRESS item moves to
// BLOCKED (the worker must stand down); any other source state moves back to
// PENDING with owner and lease cleared.
func Replan(ctx context.Context, store *queue.Store, id, notes string) (queue.Status, error) {
	row, err := store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	merged := queue.AppendNote(row.Notes, "replan:"+strings.TrimSpace(notes))

	if row.Status == queue.StatusInProgress {
		if err := store.MarkBlocked(ctx, id, merged); err != nil {
			return "", err
		}
		return queue.StatusBlocked, nil
	}

	if err := store.Requeue(ctx, id, merged); err != nil {
		return "", err
	}
	if _, err := store.AppendEvent(ctx, id, queue.EventReplan, map[string]any{
		"status": string(queue.StatusPending),
		"notes":  merged,
	}); err != nil {
		return "", err
	}
	return queue.StatusPending, nil
}

// Retry resets a FAILED or timed-out IN_PROGRESS item on operator request.
func Retry(ctx context.Context, store *queue.Store, id string, now int64) (queue.Status, error) {
	if err := store.OperatorRetry(ctx, id, now); err != nil {
		return "", err
	}
	return queue.StatusPending, nil
}

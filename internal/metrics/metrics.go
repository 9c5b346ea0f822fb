// Package metrics exposes Prometheus collectors for the queue engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PicksTotal counts successful dispatches (PENDING -> IN_PROGRESS).
	PicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskq_picks_total",
		Help: "Number of items dispatched to workers.",
	})

	// IdempotencySkipsTotal counts duplicates auto-closed at pick time.
	IdempotencySkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskq_idempotency_skips_total",
		Help: "Number of pending duplicates auto-closed by idempotency key.",
	})

	// RetriesTotal counts retry resets (watchdog and operator).
	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskq_retries_total",
		Help: "Number of items reset to PENDING for another attempt.",
	})

	// ReviewVerdictsTotal counts review gate outcomes by verdict.
	ReviewVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskq_review_verdicts_total",
		Help: "Review gate verdicts by outcome.",
	}, []string{"verdict"})

	// GuardrailActionsTotal counts guardrail decisions by action.
	GuardrailActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskq_guardrail_actions_total",
		Help: "Guardrail decisions by action.",
	}, []string{"action"})

	// CommandRunsTotal counts CLI/daemon command executions by outcome.
	CommandRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskq_command_runs_total",
		Help: "Command executions by command name and status.",
	}, []string{"command", "status"})

	// WatchdogSweepsTotal counts watchdog passes.
	WatchdogSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskq_watchdog_sweeps_total",
		Help: "Number of watchdog sweep passes.",
	})
)

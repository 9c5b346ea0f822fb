package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/taskq/internal/clock"
	"github.com/ManuGH/taskq/internal/config"
	"github.com/ManuGH/taskq/internal/log"
	"github.com/ManuGH/taskq/internal/metrics"
	"github.com/ManuGH/taskq/internal/queue"
	"github.com/ManuGH/taskq/internal/runlog"
	"github.com/ManuGH/taskq/internal/telemetry"
)

// version is injected at build time via -ldflags.
var version = "dev"

// exitCodeError carries a non-default process exit code through cobra.
// quiet suppresses the ERROR line; the command already printed its output.
type exitCodeError struct {
	code  int
	msg   string
	quiet bool
}

func (e *exitCodeError) Error() string { return e.msg }

// app bundles the shared state every subcommand needs.
type app struct {
	cfg   config.Config
	clk   clock.Clock
	store *queue.Store
	runs  *runlog.Logger

	// itemID is set by commands that operate on a single item so the
	// run_end record can carry it.
	itemID string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskq",
		Short:         "Durable task queue with leases, retries and a review gate",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newQueueCmd(),
		newOpsCmd(),
		newDispatcherCmd(),
		newWatchdogCmd(),
		newReviewCmd(),
		newGuardrailCmd(),
		newRenderViewCmd(),
		newConfigCmd(),
		newMetricsCmd(),
		newDaemonCmd(),
	)
	return root
}

// runFunc is the body of one subcommand, executed inside the run wrapper.
type runFunc func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error

// withApp wraps a subcommand body with the shared lifecycle: config load,
// store open, trace id, run_start/run_end records and command metrics.
func withApp(name string, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		log.Configure(log.Config{Level: cfg.LogLevel})

		clk := clock.NewSystem(cfg.TZOffsetHours)
		store, err := queue.Open(cfg.DBPath, clk, cfg.RetryBackoff)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		a := &app{
			cfg:   cfg,
			clk:   clk,
			store: store,
			runs:  &runlog.Logger{Path: cfg.LogPath, Clock: clk},
		}

		traceID := runlog.NewTraceID()
		ctx := log.ContextWithTraceID(cmd.Context(), traceID)
		ctx, span := telemetry.Tracer("taskq/cli").Start(ctx, name)
		defer span.End()

		start := time.Now()
		_ = a.runs.Emit(runlog.Entry{
			Event:   runlog.EventRunStart,
			TraceID: traceID,
			Command: name,
			Status:  "ok",
		})

		runErr := fn(ctx, a, cmd, args)

		exitCode := 0
		status := "ok"
		errMsg := ""
		var ec *exitCodeError
		switch {
		case errors.As(runErr, &ec):
			exitCode = ec.code
			if exitCode != 0 {
				status = "error"
				errMsg = ec.msg
			}
		case runErr != nil:
			exitCode = 1
			status = "error"
			errMsg = runErr.Error()
		}

		durationMS := time.Since(start).Milliseconds()
		span.SetAttributes(telemetry.RunAttributes(name, traceID, exitCode, durationMS)...)
		if status == "error" {
			span.SetAttributes(telemetry.ErrorAttributes(runErr, errMsg)...)
			span.RecordError(runErr)
		}

		_ = a.runs.Emit(runlog.Entry{
			Event:      runlog.EventRunEnd,
			TraceID:    traceID,
			Command:    name,
			ExitCode:   exitCode,
			Status:     status,
			ItemID:     a.itemID,
			DurationMS: durationMS,
			Error:      errMsg,
		})
		metrics.CommandRunsTotal.WithLabelValues(name, status).Inc()
		return runErr
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/taskq/internal/clock"
	"github.com/ManuGH/taskq/internal/persistence/sqlite"
	"github.com/ManuGH/taskq/internal/queue"
	"github.com/ManuGH/taskq/internal/route"
	"github.com/ManuGH/taskq/internal/runlog"
	"github.com/ManuGH/taskq/internal/view"
)

func newOpsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Operator actions and health checks",
	}
	cmd.AddCommand(
		newOpsStatusCmd(),
		newOpsWorkersCmd(),
		newOpsCancelCmd(),
		newOpsReplanCmd(),
		newOpsRetryCmd(),
		newOpsConsistencyCmd(),
		newOpsKPICmd(),
		newOpsVerifyDBCmd(),
	)
	return cmd
}

func newOpsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-status counts and the oldest in-progress items",
		RunE: withApp("ops.status", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			items, err := a.store.List(ctx, queue.Filter{})
			if err != nil {
				return err
			}

			counts := map[queue.Status]int{}
			var inProgress []queue.Item
			for _, it := range items {
				counts[it.Status]++
				if it.Status == queue.StatusInProgress {
					inProgress = append(inProgress, it)
				}
			}

			out := cmd.OutOrStdout()
			for _, s := range []queue.Status{queue.StatusPending, queue.StatusInProgress, queue.StatusBlocked, queue.StatusFailed, queue.StatusDone} {
				fmt.Fprintf(out, "%-12s %d\n", s, counts[s])
			}

			top := a.cfg.TopInProgress
			if top > len(inProgress) {
				top = len(inProgress)
			}
			if top > 0 {
				fmt.Fprintf(out, "\nTop %d IN_PROGRESS:\n", top)
				renderItemTable(out, inProgress[:top])
			}
			return nil
		}),
	}
}

func newOpsWorkersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "Show active owners and lease state",
		RunE: withApp("ops.workers", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			items, err := a.store.List(ctx, queue.Filter{Status: queue.StatusInProgress})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No active workers")
				return nil
			}
			now := a.clk.NowEpoch()
			for _, it := range items {
				leaseState := "no lease"
				if it.LeaseOwner != "" {
					remaining := it.LeaseExpiresAt - now
					if remaining > 0 {
						leaseState = fmt.Sprintf("lease %s expires in %ds", it.LeaseOwner, remaining)
					} else {
						leaseState = fmt.Sprintf("lease %s EXPIRED %ds ago", it.LeaseOwner, -remaining)
					}
				}
				fmt.Fprintf(out, "%s\towner=%s\tstarted=%s\t%s\n", it.ID, it.OwnerSession, it.StartedAt, leaseState)
			}
			return nil
		}),
	}
}

func newOpsCancelCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel an item (BLOCKED with audit note)",
		RunE: withApp("ops.cancel", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			a.itemID = id
			status, err := route.Cancel(ctx, a.store, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", id, status)
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "item id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newOpsReplanCmd() *cobra.Command {
	var id, notes string
	cmd := &cobra.Command{
		Use:   "replan",
		Short: "Record a replan note and requeue or block the item",
		RunE: withApp("ops.replan", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			a.itemID = id
			status, err := route.Replan(ctx, a.store, id, notes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", id, status)
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "item id (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "replan notes (required)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("notes")
	return cmd
}

func newOpsRetryCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Retry a FAILED or lease-expired item",
		RunE: withApp("ops.retry", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			a.itemID = id
			status, err := route.Retry(ctx, a.store, id, a.clk.NowEpoch())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", id, status)
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "item id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newOpsConsistencyCmd() *cobra.Command {
	var viewPath, storePath string
	cmd := &cobra.Command{
		Use:   "consistency-check",
		Short: "Compare the view table against the store",
		RunE: withApp("ops.consistency-check", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if viewPath == "" {
				viewPath = a.cfg.ViewPath
			}
			store := a.store
			if storePath != "" && storePath != a.cfg.DBPath {
				other, err := queue.Open(storePath, a.clk, a.cfg.RetryBackoff)
				if err != nil {
					return err
				}
				defer func() { _ = other.Close() }()
				store = other
			}
			items, err := store.List(ctx, queue.Filter{})
			if err != nil {
				return err
			}
			rows, err := view.ParseFile(viewPath)
			if err != nil {
				return err
			}
			rep := view.Check(items, rows)
			out := cmd.OutOrStdout()
			if rep.OK() {
				fmt.Fprintln(out, "OK: view matches store")
				return nil
			}
			for _, id := range rep.MissingInView {
				fmt.Fprintf(out, "missing_in_view: %s\n", id)
			}
			for _, id := range rep.MissingInStore {
				fmt.Fprintf(out, "missing_in_store: %s\n", id)
			}
			for _, m := range rep.Mismatches {
				fmt.Fprintf(out, "mismatch: %s %s store=%q view=%q\n", m.ID, m.Field, m.Store, m.View)
			}
			return &exitCodeError{code: 1, msg: "view diverges from store", quiet: true}
		}),
	}
	cmd.Flags().StringVar(&viewPath, "view-path", "", "view file to check (defaults to the configured one)")
	cmd.Flags().StringVar(&storePath, "store-path", "", "store database to check (defaults to the configured one)")
	return cmd
}

func newOpsKPICmd() *cobra.Command {
	var (
		logPath      string
		staleMinutes int
		failOnAlert  bool
		thresholds   = runlog.DefaultThresholds()
	)
	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Aggregate run KPIs and evaluate alert thresholds",
		RunE: withApp("ops.kpi", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if logPath == "" {
				logPath = a.cfg.LogPath
			}
			if staleMinutes < 0 {
				staleMinutes = a.cfg.StaleMinutes
			}
			records, err := runlog.ReadAll(logPath)
			if err != nil {
				return err
			}
			kpi := runlog.Aggregate(records)

			retries, err := a.store.CountEvents(ctx, queue.EventRetried)
			if err != nil {
				return err
			}
			stale, err := a.staleInProgress(ctx, staleMinutes)
			if err != nil {
				return err
			}
			kpi = runlog.Finalize(kpi, retries, stale, thresholds)

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(map[string]any{
				"total_runs":      kpi.TotalRuns,
				"success_runs":    kpi.SuccessRuns,
				"success_rate":    kpi.SuccessRate,
				"avg_duration_ms": kpi.AvgDurationMS,
				"p95_duration_ms": kpi.P95DurationMS,
				"retry_count":     kpi.RetryCount,
				"stale_count":     kpi.StaleCount,
				"alerts":          kpi.Alerts,
			}); err != nil {
				return err
			}
			for _, alert := range kpi.Alerts {
				fmt.Fprintf(out, "alert %s\n", alert)
			}
			if failOnAlert && len(kpi.Alerts) > 0 {
				return &exitCodeError{code: 2, msg: "kpi alerts: " + strings.Join(kpi.Alerts, ","), quiet: true}
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&logPath, "log-path", "", "run log path (defaults to the configured one)")
	cmd.Flags().Float64Var(&thresholds.MaxFailureRate, "max-failure-rate", runlog.DefaultMaxFailureRate, "alert when 1-success_rate exceeds this")
	cmd.Flags().Float64Var(&thresholds.MaxLatencyP95MS, "max-latency-p95-ms", runlog.DefaultMaxLatencyP95MS, "alert when p95 duration exceeds this")
	cmd.Flags().IntVar(&thresholds.MaxStaleInProgress, "max-stale-in-progress", runlog.DefaultMaxStaleInProgress, "alert when stale IN_PROGRESS count exceeds this")
	cmd.Flags().IntVar(&staleMinutes, "stale-minutes", -1, "stale age in minutes (defaults to the configured one)")
	cmd.Flags().BoolVar(&failOnAlert, "fail-on-alert", false, "exit with code 2 when any alert fires")
	return cmd
}

// staleInProgress counts IN_PROGRESS items older than staleMinutes.
func (a *app) staleInProgress(ctx context.Context, staleMinutes int) (int, error) {
	items, err := a.store.List(ctx, queue.Filter{Status: queue.StatusInProgress})
	if err != nil {
		return 0, err
	}
	count := 0
	now := a.clk.Now()
	for _, it := range items {
		started, ok := clock.ParseWall(it.StartedAt, a.cfg.TZOffsetHours)
		if !ok {
			continue
		}
		if now.Sub(started).Minutes() >= float64(staleMinutes) {
			count++
		}
	}
	return count, nil
}

func newOpsVerifyDBCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "verify-db",
		Short: "Run a SQLite integrity check on the queue database",
		RunE: withApp("ops.verify-db", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			mode := "quick"
			if full {
				mode = "full"
			}
			problems, err := sqlite.VerifyIntegrity(a.cfg.DBPath, mode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(problems) == 0 {
				fmt.Fprintf(out, "OK: %s integrity check passed\n", mode)
				return nil
			}
			for _, p := range problems {
				fmt.Fprintf(out, "corruption: %s\n", p)
			}
			return &exitCodeError{code: 1, msg: "database integrity check failed", quiet: true}
		}),
	}
	cmd.Flags().BoolVar(&full, "full", false, "run the full integrity_check instead of quick_check")
	return cmd
}

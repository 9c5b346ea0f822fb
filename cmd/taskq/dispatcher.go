package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/taskq/internal/watchdog"
)

func newDispatcherCmd() *cobra.Command {
	var owner string
	var lease bool
	cmd := &cobra.Command{
		Use:   "dispatcher",
		Short: "Run one dispatch pass: claim the next item and refresh the view",
		RunE: withApp("dispatcher", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			it, err := a.store.PickNext(ctx, owner)
			if err != nil {
				return err
			}
			if it == nil {
				fmt.Fprintln(out, "NOOP")
			} else {
				a.itemID = it.ID
				if lease {
					if _, err := a.store.AcquireLease(ctx, it.ID, owner, a.cfg.LeaseTTL); err != nil {
						return err
					}
				}
				fmt.Fprintf(out, "DISPATCHED %s -> %s\n", it.ID, owner)
			}
			return a.renderView(ctx)
		}),
	}
	cmd.Flags().StringVar(&owner, "owner-session", "dispatcher", "owner session to assign picked items to")
	cmd.Flags().BoolVar(&lease, "lease", true, "acquire a lease for the picked item")
	return cmd
}

func newWatchdogCmd() *cobra.Command {
	var staleMinutes int
	cmd := &cobra.Command{
		Use:   "watchdog",
		Short: "Run one recovery sweep over failed and stuck items",
		RunE: withApp("watchdog", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if staleMinutes < 0 {
				staleMinutes = a.cfg.StaleMinutes
			}
			wd := &watchdog.Watchdog{
				Store:         a.store,
				Clock:         a.clk,
				StaleMinutes:  staleMinutes,
				TZOffsetHours: a.cfg.TZOffsetHours,
			}
			res, err := wd.RunOnce(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Empty() {
				fmt.Fprintln(out, "NOOP")
				return nil
			}
			ids := append(append([]string{}, res.Retried...), res.StaleReset...)
			fmt.Fprintf(out, "RESET %s\n", strings.Join(ids, ","))
			return a.renderView(ctx)
		}),
	}
	cmd.Flags().IntVar(&staleMinutes, "stale-minutes", -1, "stale age in minutes (defaults to the configured one)")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ManuGH/taskq/internal/queue"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Add, list, pick and complete queue items",
	}
	cmd.AddCommand(
		newQueueAddCmd(),
		newQueueListCmd(),
		newQueuePickCmd(),
		newQueueShowCmd(),
		newQueueDoneCmd(),
		newQueueFailCmd(),
	)
	return cmd
}

func newQueueAddCmd() *cobra.Command {
	var (
		id, priority, task, criteria string
		dueAt, notes, idemKey        string
		maxAttempts                  int
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new PENDING item",
		RunE: withApp("queue.add", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			a.itemID = id
			p := queue.Priority(priority)
			if !p.Valid() {
				return fmt.Errorf("invalid priority %q (want P0, P1 or P2)", priority)
			}
			if maxAttempts <= 0 {
				maxAttempts = a.cfg.MaxAttempts
			}
			err := a.store.Add(ctx, queue.AddParams{
				ID:              id,
				Priority:        p,
				Task:            task,
				SuccessCriteria: criteria,
				DueAt:           dueAt,
				Notes:           notes,
				IdempotencyKey:  idemKey,
				MaxAttempts:     maxAttempts,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "item id (required)")
	cmd.Flags().StringVar(&priority, "priority", "P2", "priority: P0, P1 or P2")
	cmd.Flags().StringVar(&task, "task", "", "task description (required)")
	cmd.Flags().StringVar(&criteria, "success-criteria", "", "success criteria the review gate checks")
	cmd.Flags().StringVar(&dueAt, "due", "", "due time as wall-clock string")
	cmd.Flags().StringVar(&notes, "notes", "", "initial notes")
	cmd.Flags().StringVar(&idemKey, "idempotency-key", "", "dedup key; duplicates are skipped at pick time")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "per-item retry cap (0 uses the configured default)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func newQueueListCmd() *cobra.Command {
	var status, priority string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items in dispatch order",
		RunE: withApp("queue.list", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			f := queue.Filter{Status: queue.Status(status), Priority: queue.Priority(priority)}
			if status != "" && !f.Status.Valid() {
				return fmt.Errorf("invalid status %q", status)
			}
			if priority != "" && !f.Priority.Valid() {
				return fmt.Errorf("invalid priority %q", priority)
			}
			items, err := a.store.List(ctx, f)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			renderItemTable(cmd.OutOrStdout(), items)
			return nil
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	return cmd
}

func renderItemTable(w io.Writer, items []queue.Item) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "STATUS", "PRIO", "TASK", "OWNER", "ATTEMPTS", "UPDATED"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, it := range items {
		table.Append([]string{
			it.ID,
			string(it.Status),
			string(it.Priority),
			truncate(it.Task, 60),
			it.OwnerSession,
			fmt.Sprintf("%d/%d", it.AttemptCount, it.MaxAttempts),
			it.UpdatedAt,
		})
	}
	table.Render()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func newQueuePickCmd() *cobra.Command {
	var owner string
	var lease bool
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Claim the next eligible PENDING item",
		RunE: withApp("queue.pick", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if lease && owner == "-" {
				return fmt.Errorf("--lease requires --owner-session")
			}
			it, err := a.store.PickNext(ctx, owner)
			if err != nil {
				return err
			}
			if it == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending tasks")
				return nil
			}
			a.itemID = it.ID
			if lease {
				ok, err := a.store.AcquireLease(ctx, it.ID, owner, a.cfg.LeaseTTL)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("picked %s but lease is held by another owner", it.ID)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", it.ID, it.Priority, it.Task)
			return nil
		}),
	}
	cmd.Flags().StringVar(&owner, "owner-session", "-", "owner session claiming the item")
	cmd.Flags().BoolVar(&lease, "lease", false, "also acquire an exclusive lease")
	return cmd
}

func newQueueShowCmd() *cobra.Command {
	var id string
	var withEvents bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one item and optionally its event log",
		RunE: withApp("queue.show", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			a.itemID = id
			it, err := a.store.Get(ctx, id)
			if err != nil {
				return err
			}
			out := map[string]any{"item": it}
			if withEvents {
				events, err := a.store.Events(ctx, id)
				if err != nil {
					return err
				}
				out["events"] = events
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "item id (required)")
	cmd.Flags().BoolVar(&withEvents, "events", false, "include the event log")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newQueueDoneCmd() *cobra.Command {
	var id, notes string
	cmd := &cobra.Command{
		Use:   "done",
		Short: "Mark an item DONE",
		RunE: withApp("queue.done", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			a.itemID = id
			if err := a.store.MarkDone(ctx, id, notes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> DONE\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "item id (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "completion notes (replaces existing notes)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newQueueFailCmd() *cobra.Command {
	var id, notes string
	cmd := &cobra.Command{
		Use:   "fail",
		Short: "Mark an item FAILED",
		RunE: withApp("queue.fail", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			a.itemID = id
			if err := a.store.MarkFailed(ctx, id, notes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> FAILED\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "item id (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "failure reason (recorded as last_error)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/taskq/internal/guardrail"
	"github.com/ManuGH/taskq/internal/metrics"
	"github.com/ManuGH/taskq/internal/queue"
)

func newGuardrailCmd() *cobra.Command {
	var (
		id, report    string
		currentTokens int
		soft, hard    int
	)
	cmd := &cobra.Command{
		Use:   "enforce-guardrails",
		Short: "Validate a compact report and enforce the token budget",
		RunE: withApp("enforce-guardrails", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			a.itemID = id
			it, err := a.store.Get(ctx, id)
			if err != nil {
				return err
			}

			if soft <= 0 {
				soft = a.cfg.TokenSoftLimit
			}
			if hard <= 0 {
				hard = a.cfg.TokenHardLimit
			}

			reportText, err := resolveReport(report)
			if err != nil {
				return err
			}

			validation := guardrail.ValidateCompactReport(reportText)
			state := guardrail.CheckBudget(currentTokens, soft, hard)
			action := guardrail.DecideAction(state, validation.Violations)
			metrics.GuardrailActionsTotal.WithLabelValues(string(action)).Inc()

			if _, err := a.store.AppendEvent(ctx, id, queue.EventGuardrail, map[string]any{
				"action":           string(action),
				"state":            string(state),
				"current_tokens":   currentTokens,
				"estimated_tokens": validation.EstimatedTokens,
				"violations":       validation.Violations,
			}); err != nil {
				return err
			}

			if action == guardrail.ActionBlock {
				notes := queue.AppendNote(it.Notes,
					fmt.Sprintf("Guardrail BLOCK: state=%s; violations=%d", state, len(validation.Violations)))
				if err := a.store.MarkBlocked(ctx, id, notes); err != nil {
					return err
				}
				if err := a.renderView(ctx); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "item=%s state=%s action=%s violations=%d\n",
				id, state, action, len(validation.Violations))
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "item id (required)")
	cmd.Flags().StringVar(&report, "report", "", "compact report: file path or literal text")
	cmd.Flags().IntVar(&currentTokens, "current-tokens", 0, "tokens consumed so far")
	cmd.Flags().IntVar(&soft, "soft", 0, "soft token limit (0 uses the configured default)")
	cmd.Flags().IntVar(&hard, "hard", 0, "hard token limit (0 uses the configured default)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

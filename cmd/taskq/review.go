package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/taskq/internal/gate"
	"github.com/ManuGH/taskq/internal/log"
	"github.com/ManuGH/taskq/internal/route"
	"github.com/ManuGH/taskq/internal/uismoke"
)

// resolveReport treats the flag value as a file path when it names an
// existing file, otherwise as the literal report text.
func resolveReport(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	info, err := os.Stat(value)
	if err == nil && !info.IsDir() {
		data, err := os.ReadFile(value) // #nosec G304 -- operator-supplied report path
		if err != nil {
			return "", fmt.Errorf("read report %s: %w", value, err)
		}
		return string(data), nil
	}
	return value, nil
}

func newReviewCmd() *cobra.Command {
	var (
		id, criteria, report string
		uiURL, uiSession     string
		uiContains           []string
		uiTimeout            time.Duration
		maxRetries           int
	)
	cmd := &cobra.Command{
		Use:   "review-and-route",
		Short: "Evaluate a worker report against the success criteria and route the item",
		RunE: withApp("review-and-route", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			a.itemID = id
			ctx = log.ContextWithItemID(ctx, id)

			it, err := a.store.Get(ctx, id)
			if err != nil {
				return err
			}
			if criteria == "" {
				criteria = it.SuccessCriteria
			}

			reportText, err := resolveReport(report)
			if err != nil {
				return err
			}

			verdict := gate.Evaluate(criteria, reportText, it.AttemptCount, maxRetries)

			if uiURL != "" {
				ui := uismoke.Validate(ctx, uismoke.Params{
					URL:           uiURL,
					RequiredTerms: uiContains,
					Timeout:       uiTimeout,
					Session:       uiSession,
				})
				verdict = gate.ApplyUIGate(verdict, &ui, it.AttemptCount, maxRetries)
			}

			status, err := route.Apply(ctx, a.store, id, verdict, maxRetries)
			if err != nil {
				return err
			}
			if err := a.renderView(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", id, status, verdict.Verdict)
			return nil
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "item id (required)")
	cmd.Flags().StringVar(&criteria, "success-criteria", "", "override the item's stored success criteria")
	cmd.Flags().StringVar(&report, "report", "", "worker report: file path or literal text")
	cmd.Flags().StringVar(&uiURL, "ui-url", "", "run a UI smoke check against this URL")
	cmd.Flags().StringSliceVar(&uiContains, "ui-contains", nil, "terms that must appear in the UI snapshot")
	cmd.Flags().DurationVar(&uiTimeout, "ui-timeout", 45*time.Second, "timeout per UI command")
	cmd.Flags().StringVar(&uiSession, "ui-session", "", "browser tool session name")
	cmd.Flags().IntVar(&maxRetries, "max-retries", gate.DefaultMaxRetries, "review retries before BLOCK")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

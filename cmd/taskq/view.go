package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/taskq/internal/log"
	"github.com/ManuGH/taskq/internal/queue"
	"github.com/ManuGH/taskq/internal/view"
)

// renderView projects the store into the Markdown view. A read-only view is a
// logged no-op, not a failure.
func (a *app) renderView(ctx context.Context) error {
	items, err := a.store.List(ctx, queue.Filter{})
	if err != nil {
		return err
	}
	r := &view.Renderer{Path: a.cfg.ViewPath, ReadOnly: a.cfg.ViewReadOnly}
	err = r.Render(items)
	if errors.Is(err, view.ErrReadOnly) {
		logger := log.WithComponentFromContext(ctx, "view")
		logger.Info().
			Str(log.FieldPath, a.cfg.ViewPath).
			Msg("view is read-only; render skipped")
		return nil
	}
	return err
}

func newRenderViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render-view",
		Short: "Regenerate the Markdown queue table from the store",
		RunE: withApp("render-view", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.renderView(ctx); err != nil {
				return err
			}
			if a.cfg.ViewReadOnly {
				fmt.Fprintln(cmd.OutOrStdout(), "view is read-only; render skipped")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s\n", a.cfg.ViewPath)
			return nil
		}),
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: withApp("config", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfg.Summary())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}),
	}
}

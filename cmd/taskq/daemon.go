package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/taskq/internal/log"
	"github.com/ManuGH/taskq/internal/queue"
	"github.com/ManuGH/taskq/internal/telemetry"
	"github.com/ManuGH/taskq/internal/watchdog"
)

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the maintenance loops and the HTTP API until interrupted",
		RunE: withApp("daemon", func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tp, err := telemetry.NewProvider(ctx, telemetry.FromEnv(version))
			if err != nil {
				return err
			}
			defer func() { _ = tp.Shutdown(context.Background()) }()

			wd := &watchdog.Watchdog{
				Store:         a.store,
				Clock:         a.clk,
				Interval:      a.cfg.WatchdogInterval,
				StaleMinutes:  a.cfg.StaleMinutes,
				TZOffsetHours: a.cfg.TZOffsetHours,
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.dispatchLoop(ctx) })
			g.Go(func() error { return wd.Run(ctx) })
			g.Go(func() error { return a.serveHTTP(ctx) })

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}),
	}
}

// dispatchLoop refreshes the view projection on the dispatcher interval. The
// daemon never claims items itself; workers do that via queue pick.
func (a *app) dispatchLoop(ctx context.Context) error {
	interval := a.cfg.DispatcherInterval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := log.WithComponentFromContext(ctx, "dispatch")
	logger.Info().Dur("interval", interval).Msg("dispatch loop started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("dispatch loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.renderView(ctx); err != nil {
				logger.Error().Err(err).Msg("view render failed")
				continue
			}
			pending, err := a.store.List(ctx, queue.Filter{Status: queue.StatusPending})
			if err != nil {
				logger.Error().Err(err).Msg("pending count failed")
				continue
			}
			logger.Info().Int("pending", len(pending)).Msg("dispatch pass")
		}
	}
}

func (a *app) serveHTTP(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/queue", func(w http.ResponseWriter, req *http.Request) {
		f := queue.Filter{
			Status:   queue.Status(req.URL.Query().Get("status")),
			Priority: queue.Priority(req.URL.Query().Get("priority")),
		}
		items, err := a.store.List(req.Context(), f)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, items)
	})

	r.Get("/queue/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		it, err := a.store.Get(req.Context(), id)
		if errors.Is(err, queue.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		events, err := a.store.Events(req.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": it, "events": events})
	})

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger := log.WithComponentFromContext(ctx, "http")
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server started")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

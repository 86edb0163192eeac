package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/pushkit/internal/api"
	"github.com/hoanghai1803/pushkit/internal/intercept"
	"github.com/hoanghai1803/pushkit/internal/schedule"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the HTTP API and the intercept hook.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), false)
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Serves the HTTP API and runs the configured schedule.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), true)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, daemonCmd)
}

// newScheduler registers the configured entries against the app's runner.
func newScheduler(a *app) (*schedule.Scheduler, error) {
	registry := a.runner.Registry()
	return schedule.New(a.runner, a.loc, a.cfg.Schedule, func(name string) bool {
		_, ok := registry.Get(name)
		return ok
	})
}

func serve(ctx context.Context, withSchedule bool) error {
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := api.Deps{
		Runner: a.runner,
		Store:  a.store,
		Hook: intercept.NewHook(&intercept.WeiboObserver{
			State:  a.store.State(),
			Notify: a.sink,
		}),
		Token: a.cfg.Server.Token,
	}

	var sched *schedule.Scheduler
	if withSchedule {
		if sched, err = newScheduler(a); err != nil {
			return err
		}
		deps.Planner = sched
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if a.cfg.Server.Token == "" {
		slog.Warn("no API token configured, /api and /hook are unauthenticated")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", "http://"+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	if sched != nil {
		sched.Start()
	}

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if sched != nil {
			errs = append(errs, sched.Stop(shutdownCtx))
		}
		errs = append(errs, srv.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})
	return g.Wait()
}

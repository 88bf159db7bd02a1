// Package main is the entry point of the score hub worker.
//
// The worker runs only the maintenance jobs (drift repair of daily
// summaries and leaderboard cache warming) against the shared database, for
// deployments that keep the API server free of background work. It refuses
// to start on the in-memory store, which would be invisible to the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mahjong-hub/mahjong-score-hub/config"
	"github.com/mahjong-hub/mahjong-score-hub/internal/app"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, slogger := app.NewLoggers(cfg)
	log.Info("starting score hub worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.Duration("rebuild_interval", cfg.Scheduler.RebuildDailyInterval),
	)

	a, err := app.Build(ctx, cfg, log, slogger, app.Options{RequireDatabase: true, Version: cfg.App.Version})
	defer a.Close()
	if err != nil {
		return err
	}

	sched, err := a.Scheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	for _, job := range sched.ListJobs() {
		log.Info("job scheduled",
			logger.String("job", job.Name),
			logger.String("schedule", job.Schedule),
		)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))

	if err := sched.Stop(); err != nil {
		log.Error("failed to stop scheduler", logger.Err(err))
	}

	m := sched.GetMetrics().Snapshot()
	log.Info("worker stopped",
		logger.Int64("executions", m.TotalExecutions),
		logger.Int64("failures", m.TotalFailures),
	)
	return nil
}

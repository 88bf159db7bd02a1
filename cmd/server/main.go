// Package main is the entry point of the score hub API server.
//
// The server records games, keeps round results and daily summaries in
// step, and serves statistics, leaderboards and the dashboard over HTTP.
// Unless SCHEDULER_ENABLED is false it also runs the maintenance jobs, so a
// single process is enough for a club.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mahjong-hub/mahjong-score-hub/config"
	"github.com/mahjong-hub/mahjong-score-hub/internal/app"
	"github.com/mahjong-hub/mahjong-score-hub/internal/infrastructure/scheduler"
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
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, slogger := app.NewLoggers(cfg)
	log.Info("starting score hub server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORE, CACHE, EVENT BUS, HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	a, err := app.Build(ctx, cfg, log, slogger, app.Options{Version: cfg.App.Version})
	defer a.Close()
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. HTTP SERVER & SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	httpServer, err := a.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		if sched, err = a.Scheduler(); err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	errCh := httpServer.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("http server error", logger.Err(err))
			runErr = err
		}
	}

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		runErr = errors.Join(runErr, err)
	}
	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", logger.Err(err))
		}
	}

	log.Info("shutdown completed")
	return runErr
}

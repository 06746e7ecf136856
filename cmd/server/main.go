// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package main runs the history import service.
//
// Startup order:
//
//  1. Configuration: defaults, config file, then environment (Koanf v2)
//  2. Logging: zerolog with the configured level and format
//  3. Session database: DuckDB, credential cipher, seeded servers
//  4. Job store: BadgerDB; jobs left queued or running by a previous
//     process are marked failed
//  5. Job events: Watermill over GoChannel, or NATS when events.nats_url is set
//  6. Dispatcher and worker pool
//  7. Supervisor tree: janitor and event journal, worker pool, HTTP API
//
// SIGINT and SIGTERM cancel the tree. Running imports are cancelled and
// recorded as failed before the stores close.
//
// Example:
//
//	CONFIG_PATH=/etc/historian/config.yaml \
//	ENCRYPTION_SECRET=$(openssl rand -base64 32) \
//	./historian-server
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/historian/internal/api"
	"github.com/tomtom215/historian/internal/app"
	"github.com/tomtom215/historian/internal/config"
	"github.com/tomtom215/historian/internal/events"
	"github.com/tomtom215/historian/internal/jobs"
	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/supervisor"
	"github.com/tomtom215/historian/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		fmt.Fprintf(os.Stderr, "historian: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		stop()
		os.Exit(1)
	}
}

//nolint:gocyclo // sequential startup with one cleanup per step
func run(ctx context.Context, cfg *config.Config) error {
	logging.Info().Str("db_path", cfg.Database.Path).Str("job_store", cfg.JobStore.Path).
		Bool("job_store_in_memory", cfg.JobStore.InMemory).Msg("Starting history import service")

	db, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Err(err).Msg("Error closing database")
		}
	}()
	if cfg.Security.EncryptionSecret == "" {
		logging.Warn().Msg("security.encryption_secret is not set; server tokens are stored in plaintext")
	}

	store, err := jobs.OpenBadgerStore(&cfg.JobStore)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Err(err).Msg("Error closing job store")
		}
	}()

	bus, err := events.NewBus(&cfg.Events)
	if err != nil {
		return fmt.Errorf("job events: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Err(err).Msg("Error closing event bus")
		}
	}()
	logging.Info().Str("transport", bus.Transport()).Str("topic", bus.Topic()).Msg("Job events ready")

	tracker := jobs.NewTracker(store, jobs.WithNotifier(bus))
	if n, err := tracker.FailInterrupted(ctx); err != nil {
		return fmt.Errorf("recover interrupted jobs: %w", err)
	} else if n > 0 {
		logging.Warn().Int("jobs", n).Msg("Marked jobs interrupted by the previous shutdown as failed")
	}

	pool := app.NewPool(cfg)
	dispatcher := app.NewDispatcher(cfg, db, tracker, pool)

	router := api.NewRouter(dispatcher, db, api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		RateLimitRequests:  cfg.Server.RateLimitRequests,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	})
	httpServer := &http.Server{
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	tree.AddDataService(jobs.NewJanitor(tracker, cfg.JobStore.FailedRetention, cfg.JobStore.CleanupCron))
	tree.AddDataService(events.NewJournal(bus, logging.WithComponent("job-events")))
	tree.AddWorkerService(pool)
	tree.AddAPIService(services.NewHTTPServerService(httpServer, addr, 10*time.Second))

	err = tree.Serve(ctx)

	if dropped := pool.Close(); dropped > 0 {
		logging.Warn().Int("jobs", dropped).Msg("Queued jobs were never started; they will be failed on next start")
	}
	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seojin/mailflow/internal/activity"
	"github.com/seojin/mailflow/internal/api"
	"github.com/seojin/mailflow/internal/config"
	"github.com/seojin/mailflow/internal/logger"
	"github.com/seojin/mailflow/internal/provider"
	"github.com/seojin/mailflow/internal/queue"
	"github.com/seojin/mailflow/internal/storage"
	"github.com/seojin/mailflow/internal/workflow"
)

// adminPortOffset places the orchestrator's admin endpoint next to the API
// server's port so both fit one config file.
const adminPortOffset = 1

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewFromConfig(logger.LoggingConfig{
		Service:   "orchestrator",
		Level:     cfg.Logging.Level,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
		CWGroup:   cfg.Logging.CWGroup,
		CWStream:  cfg.Logging.CWStream,
		CWRegion:  cfg.Logging.CWRegion,
	})
	log.Info().Msg("starting orchestrator")

	ctx := context.Background()

	// lifeCtx bounds every running workflow; cancelling it suspends them at
	// their next persisted checkpoint.
	lifeCtx, stopWorkflows := context.WithCancel(ctx)
	defer stopWorkflows()

	db, err := storage.NewDB(ctx, cfg.Database.URL, cfg.Database.PoolMin, cfg.Database.PoolMax, cfg.Database.ConnectTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	go db.CollectPoolMetrics(lifeCtx, 15*time.Second)

	instances, err := storage.NewInstanceStore(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize instance store")
	}
	events, err := storage.NewEventStore(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize event store")
	}

	// Outbound provider and the heartbeating send activity around it.
	prov, err := provider.New(cfg.Provider)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider")
	}
	sender := activity.NewSendActivity(prov, cfg.Workflow.HeartbeatInterval, log)

	hub := workflow.NewHub()
	runner := workflow.NewRunner(instances, events, sender, hub, cfg.Workflow, log)
	coordinator := workflow.NewCoordinator(instances, runner, hub, log)

	// Relaunch every workflow that was in flight when the previous process
	// stopped, then start consuming new tasks.
	if err := coordinator.Start(lifeCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to recover workflows")
	}

	_, dequeuer, dlq, err := queue.NewQueue(cfg.Queue, coordinator, log, "orchestrator")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize task queue")
	}
	if err := dequeuer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start task consumers")
	}

	// Small admin surface: liveness, metrics, DLQ reprocessing.
	admin := chi.NewRouter()
	admin.Use(api.CorrelationIDMiddleware(log))
	admin.Use(api.RecoverMiddleware(log))
	admin.Get("/healthz", api.HealthzHandler())
	admin.Get("/readyz", api.ReadyzHandler(db))
	admin.Handle("/metrics", promhttp.Handler())
	admin.Post("/dlq/reprocess", api.DLQReprocessHandler(dlq))

	adminAddr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port+adminPortOffset)
	adminSrv := &http.Server{
		Addr:         adminAddr,
		Handler:      admin,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}
	go func() {
		log.Info().Str("addr", adminAddr).Msg("admin endpoint listening")
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("admin server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down orchestrator")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop taking new tasks first, then suspend running workflows. Each one
	// persists its state before every wait, so a later start resumes them.
	if err := dequeuer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("task consumers did not stop cleanly")
	}
	stopWorkflows()
	coordinator.Wait()

	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server forced to shutdown")
	}

	log.Info().Msg("orchestrator stopped")
}

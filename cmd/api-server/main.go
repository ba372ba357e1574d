package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seojin/mailflow/internal/api"
	"github.com/seojin/mailflow/internal/config"
	"github.com/seojin/mailflow/internal/logger"
	"github.com/seojin/mailflow/internal/queue"
	"github.com/seojin/mailflow/internal/storage"
	"github.com/seojin/mailflow/internal/tenant"
	"github.com/seojin/mailflow/internal/webhook"
	"github.com/seojin/mailflow/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewFromConfig(logger.LoggingConfig{
		Service:   "api-server",
		Level:     cfg.Logging.Level,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
		CWGroup:   cfg.Logging.CWGroup,
		CWStream:  cfg.Logging.CWStream,
		CWRegion:  cfg.Logging.CWRegion,
	})
	log.Info().Msg("starting API server")

	// Connect to database
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.NewDB(
		ctx,
		cfg.Database.URL,
		cfg.Database.PoolMin,
		cfg.Database.PoolMax,
		cfg.Database.ConnectTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	log.Info().Msg("database connection established")
	go db.CollectPoolMetrics(ctx, 15*time.Second)

	// Stores run their schema migrations on construction.
	events, err := storage.NewEventStore(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize event store")
	}
	instances, err := storage.NewInstanceStore(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize instance store")
	}
	suppressions, err := storage.NewSuppressionStore(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize suppression store")
	}

	// Webhook ingestion pipeline.
	if len(cfg.Webhook.Secrets) == 0 {
		log.Warn().Msg("no webhook secrets configured; signature verification is disabled")
	}
	verifier := webhook.NewVerifier(cfg.Webhook.Secrets)
	resolver := tenant.NewResolver(cfg.Webhook.TenantHeader, cfg.Webhook.FallbackTenant)
	processor := webhook.NewProcessor(events, suppressions, log)

	// The API server only publishes workflow tasks; the orchestrator
	// process consumes them.
	enqueuer, err := queue.NewEnqueuerOnly(cfg.Queue, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize task queue")
	}
	workflows := workflow.NewService(instances, enqueuer, log)

	router := api.NewRouter(api.Deps{
		DB:        db,
		Events:    events,
		Verifier:  verifier,
		Resolver:  resolver,
		Processor: processor,
		Workflows: workflows,
		Webhook: api.WebhookConfig{
			SignatureHeader: cfg.Webhook.SignatureHeader,
			WebhookIDHeader: cfg.Webhook.WebhookIDHeader,
		},
		Log: log,
	})

	// Configure HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down server")

	// Graceful shutdown with 30-second timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

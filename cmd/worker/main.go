// Package main provides the entrypoint for the airquery watchlist worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/airquery/airquery/internal/api/middleware"
	"github.com/airquery/airquery/internal/api/response"
	"github.com/airquery/airquery/internal/bootstrap"
	"github.com/airquery/airquery/internal/config"
	"github.com/airquery/airquery/internal/telemetry"
	"github.com/airquery/airquery/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airquery-worker"

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := bootstrap.NewLogger(serviceName, Version, cfg.LogLevel)
	log.Info().Str("build_time", BuildTime).Msg("starting airquery worker")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	instruments, err := bootstrap.NewInstruments()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize pipeline metrics")
	}

	pipeline := bootstrap.NewPipeline(cfg, log, instruments)

	store, err := bootstrap.NewStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open readings store")
	}
	defer store.Close()

	watchCfg := worker.DefaultWatchConfig()
	if len(cfg.Watch.Cities) > 0 {
		watchCfg.Targets = make([]worker.Target, 0, len(cfg.Watch.Cities))
		for _, c := range cfg.Watch.Cities {
			watchCfg.Targets = append(watchCfg.Targets, worker.Target{City: c.City, Country: c.Country})
		}
	}
	watchCfg.Concurrency = cfg.Watch.Concurrency
	watchCfg.Timeout = cfg.Watch.Timeout

	job := worker.NewWatchJob(worker.WatchJobConfig{
		Config:     watchCfg,
		Logger:     log,
		Fetcher:    pipeline.Service,
		Repository: store.Repository,
	})

	scheduler := worker.NewScheduler(job, cfg.Watch.Interval, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer scheduler.Stop()

	if cfg.PubSub.Enabled() {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Dispatcher:       worker.NewDispatcher(job, log),
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if closeErr := handler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("PUBSUB_PROJECT_ID or PUBSUB_SUBSCRIPTION not set - scheduled runs only")
	}

	// Worker also exposes a health endpoint for Cloud Run
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]any{
			"status":   "healthy",
			"version":  Version,
			"next_run": scheduler.NextRun().UTC().Format(time.RFC3339),
			"watch":    job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// Package main provides the entrypoint for the airquery API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/airquery/airquery/internal/agent"
	"github.com/airquery/airquery/internal/agent/gemini"
	"github.com/airquery/airquery/internal/api"
	"github.com/airquery/airquery/internal/api/handler"
	"github.com/airquery/airquery/internal/api/middleware"
	"github.com/airquery/airquery/internal/bootstrap"
	"github.com/airquery/airquery/internal/config"
	"github.com/airquery/airquery/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airquery-api"

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := bootstrap.NewLogger(serviceName, Version, cfg.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting airquery API")

	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if tp.Enabled() {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics(nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	instruments, err := bootstrap.NewInstruments()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize pipeline metrics")
		os.Exit(1)
	}

	pipeline := bootstrap.NewPipeline(cfg, log, instruments)
	log.Info().
		Str("pollutant", pipeline.Service.Pollutant().Name).
		Int("parameter_id", pipeline.Service.Pollutant().ID).
		Msg("air quality pipeline initialized")

	store, err := bootstrap.NewStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open readings store")
	}
	defer store.Close()

	routerCfg := api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		RequireTLS:  cfg.RequireTLS,
		Lookup:      pipeline.Service,
		Readings:    store.Repository,
		Providers:   pipeline.Registry,
		Dependencies: []handler.Dependency{
			{Name: "readings-store", Check: store.Ping},
		},
	}

	if cfg.Gemini.APIKey != "" {
		factory, err := gemini.NewFactory(ctx, gemini.Config{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize gemini client")
		}
		routerCfg.Agent = agent.New(agent.Config{
			Factory: factory,
			Tools:   agent.AirQualityTools(pipeline.Service, pipeline.Service.Pollutant()),
			Logger:  log,
		})
		log.Info().Str("model", factory.Model()).Msg("conversational agent initialized")
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set - /query answers 503")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// A prompt may take several tool rounds, each a full pipeline run.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

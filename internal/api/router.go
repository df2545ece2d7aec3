// Package api provides the HTTP API for airquery.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/airquery/airquery/internal/api/handler"
	"github.com/airquery/airquery/internal/api/middleware"
	"github.com/airquery/airquery/internal/readings"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	// Lookup runs the air quality pipelines (required).
	Lookup handler.Lookup

	// Agent answers /query prompts. Nil disables the endpoint with 503.
	Agent handler.Asker

	// Readings serves stored watchlist readings. Nil disables the endpoint.
	Readings readings.Repository

	// Providers and Dependencies feed the ops endpoints.
	Providers    handler.ProviderHealthSource
	Dependencies []handler.Dependency
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "airquery-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind a load balancer
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:      cfg.Version,
		BuildTime:    cfg.BuildTime,
		Providers:    cfg.Providers,
		Dependencies: cfg.Dependencies,
	})
	queryHandler := handler.NewQueryHandler(cfg.Agent, cfg.Logger)
	airQualityHandler := handler.NewAirQualityHandler(cfg.Lookup, cfg.Readings, cfg.Logger)

	queryRateLimit := middleware.RateLimitByIP(middleware.QueryRateLimit)   // 10 req/min
	lookupRateLimit := middleware.RateLimitByIP(middleware.LookupRateLimit) // 30 req/min

	r.Get("/", queryHandler.Root)
	r.With(queryRateLimit, middleware.RequireJSON).Post("/query", queryHandler.Query)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/air-quality", func(r chi.Router) {
			r.Use(lookupRateLimit)
			r.Get("/latest", airQualityHandler.Latest)
			r.Get("/history", airQualityHandler.History)
			r.Get("/readings", airQualityHandler.Readings)
		})
	})

	return r
}

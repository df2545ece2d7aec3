// Package bootstrap assembles the components shared by the api and worker
// binaries from a loaded configuration.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/airquery/airquery/internal/airquality"
	"github.com/airquery/airquery/internal/airquality/nominatim"
	"github.com/airquery/airquery/internal/airquality/openaq"
	"github.com/airquery/airquery/internal/config"
	"github.com/airquery/airquery/internal/database"
	"github.com/airquery/airquery/internal/provider/resilience"
	"github.com/airquery/airquery/internal/readings"
	"github.com/airquery/airquery/internal/telemetry"
)

// Provider names, used for circuit breakers, metrics and the status endpoint.
const (
	ProviderNominatim = "nominatim"
	ProviderOpenAQ    = "openaq"
)

// NewLogger returns the JSON stdout logger every binary uses.
func NewLogger(service, version string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// Instruments are the metrics the pipeline reports to. Either may be nil.
type Instruments struct {
	Provider *telemetry.ProviderMetrics
	Lookup   *telemetry.LookupMetrics
}

// NewInstruments registers both instrument sets on the global meter
// provider. Call it after telemetry.Init.
func NewInstruments() (Instruments, error) {
	provider, err := telemetry.NewProviderMetrics()
	if err != nil {
		return Instruments{}, fmt.Errorf("provider metrics: %w", err)
	}
	lookup, err := telemetry.NewLookupMetrics()
	if err != nil {
		return Instruments{}, fmt.Errorf("lookup metrics: %w", err)
	}
	return Instruments{Provider: provider, Lookup: lookup}, nil
}

// Pipeline is the lookup service together with the registry tracking its
// upstream clients.
type Pipeline struct {
	Service  *airquality.Service
	Registry *resilience.Registry
}

// NewPipeline wires the geocoder and measurement clients behind resilient
// HTTP clients.
func NewPipeline(cfg *config.Config, logger zerolog.Logger, metrics Instruments) *Pipeline {
	registry := resilience.NewRegistry()

	upstream := func(name string) *resilience.Client {
		clientCfg := resilience.DefaultClientConfig(name)
		clientCfg.Timeout = cfg.UpstreamTimeout
		clientCfg.Registry = registry
		clientCfg.Metrics = metrics.Provider
		clientCfg.Logger = logger
		return resilience.NewClient(clientCfg)
	}

	geocoder := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:    cfg.Nominatim.BaseURL,
		UserAgent:  cfg.Nominatim.UserAgent,
		HTTPClient: upstream(ProviderNominatim),
	})

	provider := openaq.NewClient(openaq.ClientConfig{
		BaseURL:    cfg.OpenAQ.BaseURL,
		APIKey:     cfg.OpenAQ.APIKey,
		HTTPClient: upstream(ProviderOpenAQ),
	})

	if cfg.OpenAQ.APIKey == "" {
		logger.Warn().Msg("OPENAQ_API_KEY not set - OpenAQ v3 rejects anonymous requests")
	}

	serviceCfg := airquality.ServiceConfig{
		Geocoder:  geocoder,
		Provider:  provider,
		Logger:    logger,
		Pollutant: cfg.Pollutant,
	}
	if metrics.Lookup != nil {
		serviceCfg.Metrics = metrics.Lookup
	}
	service := airquality.NewService(serviceCfg)

	return &Pipeline{Service: service, Registry: registry}
}

// Store is the readings repository and, when Postgres backs it, its pool.
type Store struct {
	Repository readings.Repository
	Pool       *pgxpool.Pool
}

// Ping checks the backing database. The in-memory store is always reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return nil
	}
	return s.Pool.Ping(ctx)
}

// Close releases the pool, if any.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// NewStore connects to Postgres when the database is configured and ensures
// the readings schema; otherwise readings are kept in memory.
func NewStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Store, error) {
	if !cfg.DatabaseEnabled {
		logger.Info().Msg("DB_HOST not set - readings are kept in memory")
		return &Store{Repository: readings.NewInMemoryRepository()}, nil
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	repo := readings.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure readings schema: %w", err)
	}

	logger.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Name).
		Msg("database connected")

	return &Store{Repository: repo, Pool: pool}, nil
}

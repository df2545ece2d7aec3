// Package config loads airquery settings from the environment, with an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/airquery/airquery/internal/airquality"
	"github.com/airquery/airquery/internal/database"
)

// Config is the full application configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel zerolog.Level

	// RequireTLS rejects plain-http requests forwarded by a load balancer.
	RequireTLS bool

	OpenAQ    OpenAQConfig
	Nominatim NominatimConfig

	// UpstreamTimeout bounds every outbound HTTP call.
	UpstreamTimeout time.Duration

	// Pollutant is the parameter the pipelines resolve.
	Pollutant airquality.Pollutant

	Gemini    GeminiConfig
	Telemetry TelemetryConfig
	Watch     WatchConfig
	PubSub    PubSubConfig

	// Database is only used when DatabaseEnabled is set.
	Database        database.Config
	DatabaseEnabled bool
}

// OpenAQConfig configures the measurement network client.
type OpenAQConfig struct {
	BaseURL string
	APIKey  string
}

// NominatimConfig configures the geocoder client.
type NominatimConfig struct {
	BaseURL   string
	UserAgent string
}

// GeminiConfig configures the hosted model. The agent is disabled without an API key.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

// WatchCity is one entry of the refresh watchlist.
type WatchCity struct {
	City    string
	Country string
}

// WatchConfig configures the background watchlist refresh.
type WatchConfig struct {
	Cities      []WatchCity
	Interval    time.Duration
	Concurrency int
	Timeout     time.Duration
}

// PubSubConfig configures the optional job subscription.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// Enabled reports whether both project and subscription are set.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.Subscription != ""
}

// Load reads a .env file from the working directory when present, then
// builds the configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the environment only.
func FromEnv() (*Config, error) {
	level, err := zerolog.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	timeout, err := getDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	parameterID, err := getInt("AQ_PARAMETER_ID", airquality.PM25.ID)
	if err != nil {
		return nil, err
	}
	parameterName := getEnvOrDefault("AQ_PARAMETER_NAME", airquality.PM25.Name)

	sampleRatio, err := getFloat("OTEL_SAMPLE_RATIO", 1)
	if err != nil {
		return nil, err
	}

	interval, err := getDuration("WATCH_INTERVAL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	if interval < time.Minute {
		return nil, fmt.Errorf("invalid WATCH_INTERVAL: %s is below one minute", interval)
	}

	concurrency, err := getInt("WATCH_CONCURRENCY", 3)
	if err != nil {
		return nil, err
	}

	watchTimeout, err := getDuration("WATCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cities, err := ParseWatchCities(os.Getenv("WATCH_CITIES"))
	if err != nil {
		return nil, err
	}

	db, err := databaseFromEnv()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:       getEnvOrDefault("APP_PORT", "8080"),
		Env:        getEnvOrDefault("APP_ENV", "development"),
		LogLevel:   level,
		RequireTLS: os.Getenv("REQUIRE_TLS") == "true",
		OpenAQ: OpenAQConfig{
			BaseURL: os.Getenv("OPENAQ_BASE_URL"),
			APIKey:  os.Getenv("OPENAQ_API_KEY"),
		},
		Nominatim: NominatimConfig{
			BaseURL:   os.Getenv("NOMINATIM_BASE_URL"),
			UserAgent: os.Getenv("NOMINATIM_USER_AGENT"),
		},
		UpstreamTimeout: timeout,
		Pollutant:       airquality.Pollutant{ID: parameterID, Name: parameterName},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash-lite"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      os.Getenv("OTEL_ENABLED") == "true",
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio:  sampleRatio,
		},
		Watch: WatchConfig{
			Cities:      cities,
			Interval:    interval,
			Concurrency: concurrency,
			Timeout:     watchTimeout,
		},
		PubSub: PubSubConfig{
			ProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			Subscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
		},
		Database:        db,
		DatabaseEnabled: os.Getenv("DB_HOST") != "",
	}, nil
}

func databaseFromEnv() (database.Config, error) {
	port, err := getInt("DB_PORT", 5432)
	if err != nil {
		return database.Config{}, err
	}
	maxConns, err := getInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return database.Config{}, err
	}
	minConns, err := getInt("DB_MAX_IDLE_CONNS", 2)
	if err != nil {
		return database.Config{}, err
	}
	lifetime, err := getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return database.Config{}, err
	}
	connectTimeout, err := getDuration("DB_CONNECT_TIMEOUT", 10*time.Second)
	if err != nil {
		return database.Config{}, err
	}

	return database.Config{
		Host:            os.Getenv("DB_HOST"),
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "airquery"),
		Password:        os.Getenv("DB_PASSWORD"),
		Name:            getEnvOrDefault("DB_NAME", "airquery"),
		SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
		MaxConns:        maxConns,
		MinConns:        minConns,
		ConnMaxLifetime: lifetime,
		ConnectTimeout:  connectTimeout,
	}, nil
}

// ParseWatchCities parses a comma separated watchlist of "city" or
// "city:country" entries. Blank entries are skipped.
func ParseWatchCities(raw string) ([]WatchCity, error) {
	var cities []WatchCity
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		city, country, _ := strings.Cut(entry, ":")
		city = strings.TrimSpace(city)
		if city == "" {
			return nil, fmt.Errorf("invalid WATCH_CITIES entry %q: missing city", entry)
		}
		cities = append(cities, WatchCity{City: city, Country: strings.TrimSpace(country)})
	}
	return cities, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q is not a positive integer", key, value)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

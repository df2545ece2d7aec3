package airquality

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/airquery/airquery/internal/airquality"

// LookupRecorder receives one observation per pipeline run. outcome is
// "ok" or the failure Kind.
type LookupRecorder interface {
	RecordLookup(pipeline, outcome string, elapsed time.Duration)
}

// Advisory notes attached to successful results for the conversational layer.
const (
	latestNoteFormat  = "This is the latest %s concentration from OpenAQ. The AI agent should interpret this value and describe the air quality meaningfully."
	historyNoteFormat = "This is historical yearly average %s from OpenAQ. The AI can interpret this data to provide trends or insights."
)

// Status tags every result envelope.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// LatestResult is the envelope returned by Service.Latest.
type LatestResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`

	// Kind is set on error results.
	Kind Kind `json:"-"`

	*LatestData
}

// LatestData is the payload of a successful LatestResult.
type LatestData struct {
	City            string          `json:"city"`
	Country         string          `json:"country,omitempty"`
	Parameter       string          `json:"parameter"`
	Value           float64         `json:"value"`
	Unit            string          `json:"unit"`
	Timestamp       string          `json:"timestamp"`
	TimestampSource TimestampSource `json:"timestamp_source"`
	StationID       int             `json:"station_id"`
	SensorID        int             `json:"sensor_id"`
	Note            string          `json:"note"`
}

// HistoryResult is the envelope returned by Service.History.
type HistoryResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`

	// Kind is set on error results.
	Kind Kind `json:"-"`

	*HistoryData
}

// HistoryData is the payload of a successful HistoryResult.
type HistoryData struct {
	City      string            `json:"city"`
	Country   string            `json:"country,omitempty"`
	Parameter string            `json:"parameter"`
	StationID int               `json:"station_id"`
	SensorID  int               `json:"sensor_id"`
	Events    []HistoricalEvent `json:"events"`
	Note      string            `json:"note"`
}

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Geocoder resolves city names (required).
	Geocoder Geocoder

	// Provider is the measurement network (required).
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Pollutant is the measured parameter (default: PM25).
	Pollutant Pollutant

	// StationLimit caps the station search page (default: StationPageSize).
	StationLimit int

	// YearLimit caps the yearly aggregate page (default: YearPageSize).
	YearLimit int

	// Now returns the current time (default: time.Now).
	Now func() time.Time

	// Metrics, when set, observes every Latest and History run.
	Metrics LookupRecorder
}

// Service runs the lookup pipeline. It holds no per-query state and is safe
// for concurrent use.
type Service struct {
	geocoder     Geocoder
	provider     Provider
	logger       zerolog.Logger
	pollutant    Pollutant
	stationLimit int
	yearLimit    int
	now          func() time.Time
	metrics      LookupRecorder
	tracer       trace.Tracer
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	pollutant := cfg.Pollutant
	if pollutant.ID == 0 {
		pollutant = PM25
	}
	if pollutant.Name == "" {
		pollutant.Name = fmt.Sprintf("parameter %d", pollutant.ID)
	}

	stationLimit := cfg.StationLimit
	if stationLimit <= 0 {
		stationLimit = StationPageSize
	}

	yearLimit := cfg.YearLimit
	if yearLimit <= 0 {
		yearLimit = YearPageSize
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		geocoder:     cfg.Geocoder,
		provider:     cfg.Provider,
		logger:       cfg.Logger,
		pollutant:    pollutant,
		stationLimit: stationLimit,
		yearLimit:    yearLimit,
		now:          now,
		metrics:      cfg.Metrics,
		tracer:       otel.Tracer(tracerName),
	}
}

// Pollutant returns the parameter the service is configured for.
func (s *Service) Pollutant() Pollutant {
	return s.pollutant
}

// Latest returns the most recent reading for city. It never panics; every
// failure is reported as an error result.
func (s *Service) Latest(ctx context.Context, city, country string) (result LatestResult) {
	ctx, span := s.startSpan(ctx, "latest", city, country)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("city", city).Msg("latest pipeline panicked")
			result = LatestResult{Status: StatusError, Kind: KindTransport, Message: fmt.Sprintf("Unexpected error: %v", r)}
		}
		if result.LatestData != nil {
			span.SetAttributes(attribute.Int("airquality.station_id", result.StationID))
		}
		s.finish(span, "latest", start, result.Status, result.Kind)
	}()

	reading, err := s.LatestReading(ctx, city, country)
	if err != nil {
		s.logFailure(err, "latest", city)
		return LatestResult{Status: StatusError, Kind: KindOf(err), Message: errorMessage(err)}
	}

	return LatestResult{
		Status: StatusOK,
		LatestData: &LatestData{
			City:            reading.City,
			Country:         reading.Country,
			Parameter:       reading.Pollutant.Name,
			Value:           reading.Value,
			Unit:            reading.Unit,
			Timestamp:       reading.Timestamp,
			TimestampSource: reading.TimestampSource,
			StationID:       reading.StationID,
			SensorID:        reading.SensorID,
			Note:            fmt.Sprintf(latestNoteFormat, reading.Pollutant.Name),
		},
	}
}

// LatestReading runs the latest-value pipeline and returns typed errors.
func (s *Service) LatestReading(ctx context.Context, city, country string) (*PollutantReading, error) {
	station, err := s.locateStation(ctx, city, country)
	if err != nil {
		return nil, err
	}

	detail, err := s.resolveSensor(ctx, station)
	if err != nil {
		return nil, err
	}

	if detail == nil || detail.Results == 0 {
		return nil, NewNotFound("No sensor data available.")
	}
	if detail.Latest == nil || detail.Latest.Value == nil {
		return nil, NewNotFound("No " + s.pollutant.Name + " reading available.")
	}

	timestamp := detail.Latest.TimestampUTC
	source := TimestampFromSensor
	if timestamp == "" {
		timestamp = s.now().UTC().Format(time.RFC3339)
		source = TimestampFallback
	}

	unit := detail.Unit
	if unit == "" {
		unit = DefaultUnit
	}

	return &PollutantReading{
		City:            city,
		Country:         country,
		Value:           *detail.Latest.Value,
		Unit:            unit,
		Timestamp:       timestamp,
		TimestampSource: source,
		Pollutant:       s.pollutant,
		StationID:       station.ID,
		SensorID:        detail.ID,
	}, nil
}

// History returns the yearly averages for city. It never panics; every
// failure is reported as an error result.
func (s *Service) History(ctx context.Context, city, country string) (result HistoryResult) {
	ctx, span := s.startSpan(ctx, "history", city, country)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("city", city).Msg("history pipeline panicked")
			result = HistoryResult{Status: StatusError, Kind: KindTransport, Message: fmt.Sprintf("Unexpected error: %v", r)}
		}
		if result.HistoryData != nil {
			span.SetAttributes(attribute.Int("airquality.station_id", result.StationID))
		}
		s.finish(span, "history", start, result.Status, result.Kind)
	}()

	data, err := s.history(ctx, city, country)
	if err != nil {
		s.logFailure(err, "history", city)
		return HistoryResult{Status: StatusError, Kind: KindOf(err), Message: errorMessage(err)}
	}

	return HistoryResult{Status: StatusOK, HistoryData: data}
}

func (s *Service) history(ctx context.Context, city, country string) (*HistoryData, error) {
	station, err := s.locateStation(ctx, city, country)
	if err != nil {
		return nil, err
	}

	sensor, ok := FindSensor(station, s.pollutant)
	if !ok {
		return nil, NewNotFound("No " + s.pollutant.Name + " sensor found at this station.")
	}

	years, err := s.provider.SensorYears(ctx, sensor.ID, s.yearLimit)
	if err != nil {
		return nil, NewTransportError("Error fetching historical data", err)
	}
	if len(years) == 0 {
		return nil, NewNotFound("No historical data found for " + city + ".")
	}

	return &HistoryData{
		City:      city,
		Country:   country,
		Parameter: s.pollutant.Name,
		StationID: station.ID,
		SensorID:  sensor.ID,
		Events:    ToEvents(years),
		Note:      fmt.Sprintf(historyNoteFormat, s.pollutant.Name),
	}, nil
}

// ToEvents maps yearly aggregates 1:1 into events, preserving order.
func ToEvents(years []YearlyAggregate) []HistoricalEvent {
	events := make([]HistoricalEvent, 0, len(years))
	for _, y := range years {
		unit := y.Unit
		if unit == "" {
			unit = DefaultUnit
		}
		events = append(events, HistoricalEvent{
			Year:         y.Year,
			AverageValue: y.Average,
			Unit:         unit,
			Summary:      y.Summary,
		})
	}
	return events
}

func (s *Service) startSpan(ctx context.Context, pipeline, city, country string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "airquality."+pipeline, trace.WithAttributes(
		attribute.String("airquality.city", city),
		attribute.String("airquality.country", country),
		attribute.Int("airquality.parameter_id", s.pollutant.ID),
	))
}

func (s *Service) finish(span trace.Span, pipeline string, start time.Time, status Status, kind Kind) {
	outcome := string(StatusOK)
	if status != StatusOK {
		outcome = string(kind)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("airquality.outcome", outcome))
	span.End()

	if s.metrics != nil {
		s.metrics.RecordLookup(pipeline, outcome, time.Since(start))
	}
}

func (s *Service) logFailure(err error, pipeline, city string) {
	event := s.logger.Warn()
	if KindOf(err) == KindNotFound {
		event = s.logger.Info()
	}
	event.Err(err).Str("pipeline", pipeline).Str("city", city).Msg("air quality lookup failed")
}

// errorMessage returns the user-displayable message for err.
func errorMessage(err error) string {
	var aqErr *Error
	if errors.As(err, &aqErr) {
		return aqErr.Message
	}
	return "Unexpected error: " + err.Error()
}

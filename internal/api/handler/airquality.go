package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/airquery/airquery/internal/airquality"
	"github.com/airquery/airquery/internal/api/middleware"
	"github.com/airquery/airquery/internal/api/models"
	"github.com/airquery/airquery/internal/api/response"
	"github.com/airquery/airquery/internal/readings"
)

// MaxReadingsLimit caps the limit query parameter of the readings endpoint.
const MaxReadingsLimit = 200

// Lookup runs the air quality pipelines.
type Lookup interface {
	Latest(ctx context.Context, city, country string) airquality.LatestResult
	History(ctx context.Context, city, country string) airquality.HistoryResult
}

// AirQualityHandler exposes the pipelines and stored readings directly.
type AirQualityHandler struct {
	lookup   Lookup
	readings readings.Repository
	logger   zerolog.Logger
}

// NewAirQualityHandler creates a new AirQualityHandler. repo may be nil, in
// which case the readings endpoint answers 503.
func NewAirQualityHandler(lookup Lookup, repo readings.Repository, logger zerolog.Logger) *AirQualityHandler {
	return &AirQualityHandler{lookup: lookup, readings: repo, logger: logger}
}

// Latest handles GET /v1/air-quality/latest?city=&country=.
func (h *AirQualityHandler) Latest(w http.ResponseWriter, r *http.Request) {
	city, country, ok := locationParams(w, r)
	if !ok {
		return
	}

	result := h.lookup.Latest(r.Context(), city, country)
	response.JSON(w, r, envelopeStatus(result.Status, result.Kind), result)
}

// History handles GET /v1/air-quality/history?city=&country=.
func (h *AirQualityHandler) History(w http.ResponseWriter, r *http.Request) {
	city, country, ok := locationParams(w, r)
	if !ok {
		return
	}

	result := h.lookup.History(r.Context(), city, country)
	response.JSON(w, r, envelopeStatus(result.Status, result.Kind), result)
}

// Readings handles GET /v1/air-quality/readings?city=&limit=.
func (h *AirQualityHandler) Readings(w http.ResponseWriter, r *http.Request) {
	if h.readings == nil {
		response.ServiceUnavailable(w, r, "readings storage is not configured")
		return
	}

	city, _, ok := locationParams(w, r)
	if !ok {
		return
	}

	limit := readings.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxReadingsLimit {
			response.BadRequest(w, r, "invalid limit", []models.FieldError{
				{Field: "limit", Message: "must be an integer between 1 and 200", Code: models.CodeOutOfRange},
			})
			return
		}
		limit = n
	}

	records, err := h.readings.ListByCity(r.Context(), city, limit)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("city", city).
			Msg("failed to list readings")
		response.InternalError(w, r, "failed to list readings")
		return
	}

	list := models.ReadingList{City: city, Items: make([]models.Reading, 0, len(records))}
	for _, rec := range records {
		list.Items = append(list.Items, toReading(rec))
	}
	response.JSON(w, r, http.StatusOK, list)
}

func locationParams(w http.ResponseWriter, r *http.Request) (city, country string, ok bool) {
	q := r.URL.Query()
	city = strings.TrimSpace(q.Get("city"))
	country = strings.TrimSpace(q.Get("country"))
	if city == "" {
		response.BadRequest(w, r, "city is required", []models.FieldError{
			{Field: "city", Message: "must not be empty", Code: models.CodeRequired},
		})
		return "", "", false
	}
	return city, country, true
}

// envelopeStatus maps a result envelope to an HTTP status. The envelope is
// the body in every case.
func envelopeStatus(status airquality.Status, kind airquality.Kind) int {
	if status == airquality.StatusOK {
		return http.StatusOK
	}
	switch kind {
	case airquality.KindNotFound:
		return http.StatusNotFound
	case airquality.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toReading(rec *readings.Record) models.Reading {
	return models.Reading{
		ID:              rec.ID,
		City:            rec.City,
		Country:         rec.Country,
		Status:          string(rec.Status),
		Message:         rec.Message,
		Parameter:       rec.Parameter,
		Value:           rec.Value,
		Unit:            rec.Unit,
		Timestamp:       rec.Timestamp,
		TimestampSource: string(rec.TimestampSource),
		StationID:       rec.StationID,
		SensorID:        rec.SensorID,
		ObservedAt:      models.Timestamp(rec.ObservedAt.In(time.UTC)),
	}
}

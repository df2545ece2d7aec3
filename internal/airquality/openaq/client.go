// Package openaq provides a client for the OpenAQ v3 API.
package openaq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/airquery/airquery/internal/airquality"
	"github.com/airquery/airquery/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the OpenAQ API.
	DefaultBaseURL = "https://api.openaq.org"

	// ProviderName identifies this provider.
	ProviderName = "openaq"

	// APIKeyHeader carries the optional OpenAQ API key.
	APIKeyHeader = "X-API-Key"
)

// ClientConfig holds configuration for the OpenAQ client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey is sent as X-API-Key when set.
	APIKey string

	// HTTPClient is the HTTP client to use.
	// If nil, a resilient client without retries is created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an OpenAQ API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
}

var _ airquality.Provider = (*Client)(nil)

// NewClient creates a new OpenAQ client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		}
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// API response types (from OpenAQ v3).

type listResponse[T any] struct {
	Results []T `json:"results"`
}

type datetimeObject struct {
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

type parameterData struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Units       string `json:"units"`
	DisplayName string `json:"displayName"`
}

type sensorBase struct {
	ID        int           `json:"id"`
	Name      string        `json:"name"`
	Parameter parameterData `json:"parameter"`
}

type locationData struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	Sensors      []sensorBase    `json:"sensors"`
	DatetimeLast *datetimeObject `json:"datetimeLast"`
}

type latestData struct {
	Datetime *datetimeObject `json:"datetime"`
	Value    *float64        `json:"value"`
}

type sensorData struct {
	ID        int            `json:"id"`
	Name      string         `json:"name"`
	Parameter *parameterData `json:"parameter"`
	Latest    *latestData    `json:"latest"`
}

type periodData struct {
	Label        string          `json:"label"`
	DatetimeFrom *datetimeObject `json:"datetimeFrom"`
}

type yearData struct {
	Year      *int                `json:"year"`
	Average   *float64            `json:"average"`
	Value     *float64            `json:"value"`
	Parameter *parameterData      `json:"parameter"`
	Period    *periodData         `json:"period"`
	Summary   *airquality.Summary `json:"summary"`
}

// FindStations retrieves the monitoring locations inside box that measure pollutant.
func (c *Client) FindStations(ctx context.Context, box airquality.BoundingBox, pollutant airquality.Pollutant, limit int) ([]airquality.Station, error) {
	query := url.Values{}
	query.Set("bbox", box.SearchParam())
	query.Set("limit", strconv.Itoa(limit))
	query.Set("parameters_id", strconv.Itoa(pollutant.ID))

	var result listResponse[locationData]
	if err := c.get(ctx, "/v3/locations", query, &result); err != nil {
		return nil, err
	}

	stations := make([]airquality.Station, 0, len(result.Results))
	for i := range result.Results {
		stations = append(stations, toStation(&result.Results[i]))
	}
	return stations, nil
}

// SensorDetail retrieves the full record of one sensor.
func (c *Client) SensorDetail(ctx context.Context, sensorID int) (*airquality.SensorDetail, error) {
	var result listResponse[sensorData]
	if err := c.get(ctx, "/v3/sensors/"+strconv.Itoa(sensorID), nil, &result); err != nil {
		return nil, err
	}

	detail := &airquality.SensorDetail{
		ID:      sensorID,
		Results: len(result.Results),
	}
	if len(result.Results) == 0 {
		return detail, nil
	}

	s := result.Results[0]
	if s.ID != 0 {
		detail.ID = s.ID
	}
	detail.Name = s.Name
	if s.Parameter != nil {
		detail.ParameterID = s.Parameter.ID
		detail.ParameterName = s.Parameter.Name
		detail.Unit = s.Parameter.Units
	}
	if s.Latest != nil {
		latest := &airquality.LatestValue{Value: s.Latest.Value}
		if s.Latest.Datetime != nil {
			latest.TimestampUTC = s.Latest.Datetime.UTC
		}
		detail.Latest = latest
	}

	return detail, nil
}

// SensorYears retrieves the yearly aggregates of one sensor.
func (c *Client) SensorYears(ctx context.Context, sensorID int, limit int) ([]airquality.YearlyAggregate, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var result listResponse[yearData]
	if err := c.get(ctx, "/v3/sensors/"+strconv.Itoa(sensorID)+"/years", query, &result); err != nil {
		return nil, err
	}

	years := make([]airquality.YearlyAggregate, 0, len(result.Results))
	for i := range result.Results {
		years = append(years, toYearlyAggregate(&result.Results[i]))
	}
	return years, nil
}

// get issues a GET request and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// toStation converts API location data to a domain Station.
func toStation(l *locationData) airquality.Station {
	station := airquality.Station{
		ID:      l.ID,
		Name:    l.Name,
		Sensors: make([]airquality.SensorSummary, 0, len(l.Sensors)),
	}
	if l.DatetimeLast != nil {
		station.LastReportedUTC = l.DatetimeLast.UTC
	}
	for _, s := range l.Sensors {
		station.Sensors = append(station.Sensors, airquality.SensorSummary{
			ID:            s.ID,
			ParameterID:   s.Parameter.ID,
			ParameterName: s.Parameter.Name,
		})
	}
	return station
}

// toYearlyAggregate converts one yearly record. The period start fills a
// missing year and value fills a missing average.
func toYearlyAggregate(y *yearData) airquality.YearlyAggregate {
	agg := airquality.YearlyAggregate{
		Year:    y.Year,
		Average: y.Average,
		Summary: y.Summary,
	}
	if agg.Year == nil && y.Period != nil && y.Period.DatetimeFrom != nil {
		if year, ok := parseYear(y.Period.DatetimeFrom.UTC); ok {
			agg.Year = &year
		}
	}
	if agg.Average == nil {
		agg.Average = y.Value
	}
	if y.Parameter != nil {
		agg.Unit = y.Parameter.Units
	}
	return agg
}

func parseYear(ts string) (int, bool) {
	if len(ts) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(ts[:4])
	if err != nil {
		return 0, false
	}
	return year, true
}

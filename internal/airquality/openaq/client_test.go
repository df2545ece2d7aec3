package openaq_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airquery/airquery/internal/airquality"
	"github.com/airquery/airquery/internal/airquality/openaq"
)

func newTestClient(t *testing.T, apiKey string, handler http.HandlerFunc) *openaq.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return openaq.NewClient(openaq.ClientConfig{
		BaseURL:    server.URL,
		APIKey:     apiKey,
		HTTPClient: http.DefaultClient,
	})
}

func TestClient_FindStations(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/locations", r.URL.Path)
		assert.Equal(t, "2.2,48.8,2.5,48.9", r.URL.Query().Get("bbox"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "2", r.URL.Query().Get("parameters_id"))
		assert.Empty(t, r.Header.Get(openaq.APIKeyHeader))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"meta": {"found": 2},
			"results": [
				{
					"id": 4101,
					"name": "Paris Centre",
					"datetimeLast": {"utc": "2024-06-01T00:00:00Z", "local": "2024-06-01T02:00:00+02:00"},
					"sensors": [
						{"id": 11, "name": "no2 µg/m³", "parameter": {"id": 5, "name": "no2", "units": "µg/m³"}},
						{"id": 12, "name": "pm25 µg/m³", "parameter": {"id": 2, "name": "pm25", "units": "µg/m³"}}
					]
				},
				{
					"id": 4102,
					"name": "Paris Est",
					"datetimeLast": null,
					"sensors": []
				}
			]
		}`))
	})

	box := airquality.BoundingBox{South: 48.8, North: 48.9, West: 2.2, East: 2.5}
	stations, err := client.FindStations(context.Background(), box, airquality.PM25, 100)
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, 4101, stations[0].ID)
	assert.Equal(t, "Paris Centre", stations[0].Name)
	assert.Equal(t, "2024-06-01T00:00:00Z", stations[0].LastReportedUTC)
	require.Len(t, stations[0].Sensors, 2)
	assert.Equal(t, airquality.SensorSummary{ID: 12, ParameterID: 2, ParameterName: "pm25"}, stations[0].Sensors[1])

	assert.Equal(t, 4102, stations[1].ID)
	assert.Empty(t, stations[1].LastReportedUTC)
	assert.Empty(t, stations[1].Sensors)
}

func TestClient_SendsAPIKey(t *testing.T) {
	client := newTestClient(t, "secret-key", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get(openaq.APIKeyHeader))
		_, _ = w.Write([]byte(`{"results": []}`))
	})

	stations, err := client.FindStations(context.Background(), airquality.BoundingBox{}, airquality.PM25, 100)
	require.NoError(t, err)
	assert.Empty(t, stations)
}

func TestClient_SensorDetail(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/sensors/12", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"results": [{
				"id": 12,
				"name": "pm25 µg/m³",
				"parameter": {"id": 2, "name": "pm25", "units": "µg/m³", "displayName": "PM2.5"},
				"latest": {
					"datetime": {"utc": "2024-06-01T00:00:00Z", "local": "2024-06-01T02:00:00+02:00"},
					"value": 8.4
				}
			}]
		}`))
	})

	detail, err := client.SensorDetail(context.Background(), 12)
	require.NoError(t, err)

	assert.Equal(t, 12, detail.ID)
	assert.Equal(t, 1, detail.Results)
	assert.Equal(t, 2, detail.ParameterID)
	assert.Equal(t, "µg/m³", detail.Unit)
	require.NotNil(t, detail.Latest)
	require.NotNil(t, detail.Latest.Value)
	assert.InDelta(t, 8.4, *detail.Latest.Value, 1e-9)
	assert.Equal(t, "2024-06-01T00:00:00Z", detail.Latest.TimestampUTC)
}

func TestClient_SensorDetail_MissingFields(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		results    int
		wantLatest bool
		wantValue  bool
	}{
		{
			name:    "no results",
			body:    `{"results": []}`,
			results: 0,
		},
		{
			name:    "no latest block",
			body:    `{"results": [{"id": 12, "parameter": {"id": 2, "name": "pm25"}}]}`,
			results: 1,
		},
		{
			name:       "latest without value or datetime",
			body:       `{"results": [{"id": 12, "latest": {}}]}`,
			results:    1,
			wantLatest: true,
		},
		{
			name:       "latest without datetime",
			body:       `{"results": [{"id": 12, "latest": {"value": 3.1}}]}`,
			results:    1,
			wantLatest: true,
			wantValue:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			detail, err := client.SensorDetail(context.Background(), 12)
			require.NoError(t, err)

			assert.Equal(t, 12, detail.ID)
			assert.Equal(t, tt.results, detail.Results)
			assert.Empty(t, detail.Unit)
			if !tt.wantLatest {
				assert.Nil(t, detail.Latest)
				return
			}
			require.NotNil(t, detail.Latest)
			assert.Empty(t, detail.Latest.TimestampUTC)
			assert.Equal(t, tt.wantValue, detail.Latest.Value != nil)
		})
	}
}

func TestClient_SensorYears(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/sensors/12/years", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{
			"results": [
				{
					"year": 2022,
					"average": 11.5,
					"parameter": {"id": 2, "name": "pm25", "units": "µg/m³"},
					"summary": {"min": 1.2, "median": 10.1, "max": 80.3}
				},
				{
					"value": 9.75,
					"period": {"label": "1 year", "datetimeFrom": {"utc": "2023-01-01T00:00:00Z"}}
				},
				{
					"period": {"datetimeFrom": {"utc": "n/a"}}
				}
			]
		}`))
	})

	years, err := client.SensorYears(context.Background(), 12, 100)
	require.NoError(t, err)
	require.Len(t, years, 3)

	require.NotNil(t, years[0].Year)
	assert.Equal(t, 2022, *years[0].Year)
	require.NotNil(t, years[0].Average)
	assert.InDelta(t, 11.5, *years[0].Average, 1e-9)
	assert.Equal(t, "µg/m³", years[0].Unit)
	require.NotNil(t, years[0].Summary)
	require.NotNil(t, years[0].Summary.Median)
	assert.InDelta(t, 10.1, *years[0].Summary.Median, 1e-9)
	assert.Nil(t, years[0].Summary.Q02)

	require.NotNil(t, years[1].Year)
	assert.Equal(t, 2023, *years[1].Year)
	require.NotNil(t, years[1].Average)
	assert.InDelta(t, 9.75, *years[1].Average, 1e-9)
	assert.Empty(t, years[1].Unit)
	assert.Nil(t, years[1].Summary)

	assert.Nil(t, years[2].Year)
	assert.Nil(t, years[2].Average)
}

func TestClient_UnexpectedStatus(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.SensorDetail(context.Background(), 12)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 401")

	_, err = client.SensorYears(context.Background(), 12, 100)
	require.Error(t, err)

	_, err = client.FindStations(context.Background(), airquality.BoundingBox{}, airquality.PM25, 100)
	require.Error(t, err)
}

func TestClient_InvalidJSON(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": [`))
	})

	_, err := client.FindStations(context.Background(), airquality.BoundingBox{}, airquality.PM25, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestNewClient_Defaults(t *testing.T) {
	client := openaq.NewClient(openaq.ClientConfig{})
	assert.NotNil(t, client)
}

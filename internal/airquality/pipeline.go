package airquality

import (
	"context"
	"sort"
	"strings"
)

// Page sizes used against the measurement network.
const (
	StationPageSize = 100
	YearPageSize    = 100
)

// Geocoder resolves free text into candidate places.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Provider is the measurement network.
type Provider interface {
	// FindStations returns stations inside box that measure pollutant.
	FindStations(ctx context.Context, box BoundingBox, pollutant Pollutant, limit int) ([]Station, error)

	// SensorDetail fetches the full record of one sensor.
	SensorDetail(ctx context.Context, sensorID int) (*SensorDetail, error)

	// SensorYears fetches the yearly aggregates of one sensor.
	SensorYears(ctx context.Context, sensorID int, limit int) ([]YearlyAggregate, error)
}

// SelectCandidate picks the first candidate whose display name contains country
// (case-insensitive). Without a country, or when nothing matches, the first
// candidate is returned. candidates must not be empty.
func SelectCandidate(candidates []Candidate, country string) Candidate {
	if country != "" {
		needle := strings.ToLower(country)
		for _, c := range candidates {
			if strings.Contains(strings.ToLower(c.DisplayName), needle) {
				return c
			}
		}
	}
	return candidates[0]
}

// SelectMostRecent returns the station with the greatest last-report timestamp
// string. Ties keep upstream order. stations must not be empty.
func SelectMostRecent(stations []Station) Station {
	sorted := make([]Station, len(stations))
	copy(sorted, stations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastReportedUTC > sorted[j].LastReportedUTC
	})
	return sorted[0]
}

// FindSensor returns the first sensor of station measuring pollutant.
func FindSensor(station Station, pollutant Pollutant) (SensorSummary, bool) {
	for _, s := range station.Sensors {
		if s.ParameterID == pollutant.ID {
			return s, true
		}
	}
	return SensorSummary{}, false
}

// geocodeQuery builds the free-text geocoder query.
func geocodeQuery(city, country string) string {
	if country != "" {
		return city + ", " + country
	}
	return city
}

// resolveBox runs the geocoder stage.
func (s *Service) resolveBox(ctx context.Context, city, country string) (BoundingBox, error) {
	if strings.TrimSpace(city) == "" {
		return BoundingBox{}, NewNotFound("city is required")
	}

	candidates, err := s.geocoder.Search(ctx, geocodeQuery(city, country))
	if err != nil {
		return BoundingBox{}, NewTransportError("Error fetching city coordinates", err)
	}
	if len(candidates) == 0 {
		return BoundingBox{}, NewNotFound("City '" + city + "' not found.")
	}

	chosen := SelectCandidate(candidates, country)
	s.logger.Debug().
		Str("city", city).
		Str("country", country).
		Int("candidates", len(candidates)).
		Str("display_name", chosen.DisplayName).
		Msg("geocoded city")

	box, err := chosen.BoundingBox()
	if err != nil {
		return BoundingBox{}, NewTransportError("Error fetching city coordinates", err)
	}
	return box, nil
}

// locateStation runs the geocoder and station stages.
func (s *Service) locateStation(ctx context.Context, city, country string) (Station, error) {
	box, err := s.resolveBox(ctx, city, country)
	if err != nil {
		return Station{}, err
	}

	stations, err := s.provider.FindStations(ctx, box, s.pollutant, s.stationLimit)
	if err != nil {
		return Station{}, NewTransportError("Error fetching active station", err)
	}
	if len(stations) == 0 {
		return Station{}, NewNotFound("No active stations found for " + city + ".")
	}

	station := SelectMostRecent(stations)
	s.logger.Debug().
		Int("stations", len(stations)).
		Int("station_id", station.ID).
		Str("last_reported", station.LastReportedUTC).
		Msg("selected station")

	return station, nil
}

// resolveSensor runs the sensor stage for the latest-value pipeline.
func (s *Service) resolveSensor(ctx context.Context, station Station) (*SensorDetail, error) {
	summary, ok := FindSensor(station, s.pollutant)
	if !ok {
		return nil, NewNotFound("No " + s.pollutant.Name + " sensor found.")
	}

	detail, err := s.provider.SensorDetail(ctx, summary.ID)
	if err != nil {
		return nil, NewTransportError("Error fetching sensor data", err)
	}
	return detail, nil
}

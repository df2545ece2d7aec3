// Package airquality resolves a city name into PM2.5 readings from a public
// air quality measurement network.
package airquality

import (
	"fmt"
	"strconv"
)

// DefaultUnit is used when an upstream record does not carry a unit.
const DefaultUnit = "µg/m³"

// Pollutant identifies the measured parameter in the measurement network.
type Pollutant struct {
	ID   int
	Name string
}

// PM25 is fine particulate matter, parameter id 2 in OpenAQ.
var PM25 = Pollutant{ID: 2, Name: "PM2.5"}

// BoundingBox is a geographic query region in geocoder edge order.
type BoundingBox struct {
	South float64
	North float64
	West  float64
	East  float64
}

// ParseBoundingBox parses the four string edges returned by the geocoder
// (south, north, west, east).
func ParseBoundingBox(edges []string) (BoundingBox, error) {
	if len(edges) != 4 {
		return BoundingBox{}, fmt.Errorf("bounding box has %d edges, want 4", len(edges))
	}

	var values [4]float64
	for i, e := range edges {
		v, err := strconv.ParseFloat(e, 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("parse bounding box edge %q: %w", e, err)
		}
		values[i] = v
	}

	return BoundingBox{
		South: values[0],
		North: values[1],
		West:  values[2],
		East:  values[3],
	}, nil
}

// SearchParam formats the box in the station search axis order: west,south,east,north.
func (b BoundingBox) SearchParam() string {
	return strconv.FormatFloat(b.West, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.South, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.East, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.North, 'f', -1, 64)
}

// Candidate is one geocoder match. Edges are kept as returned, in
// south,north,west,east order, and only parsed once the candidate is chosen.
type Candidate struct {
	DisplayName string
	Edges       []string
}

// BoundingBox parses the candidate's edges.
func (c Candidate) BoundingBox() (BoundingBox, error) {
	box, err := ParseBoundingBox(c.Edges)
	if err != nil {
		return BoundingBox{}, fmt.Errorf("place %q: %w", c.DisplayName, err)
	}
	return box, nil
}

// Station is a monitoring location with its sensors.
type Station struct {
	ID              int
	Name            string
	LastReportedUTC string
	Sensors         []SensorSummary
}

// SensorSummary is the short sensor description embedded in a station.
type SensorSummary struct {
	ID            int
	ParameterID   int
	ParameterName string
}

// SensorDetail is the full record for one sensor.
type SensorDetail struct {
	ID            int
	Name          string
	ParameterID   int
	ParameterName string

	// Unit is empty when the upstream record omits it.
	Unit string

	// Results is the number of result records in the upstream response.
	Results int

	// Latest is nil when the upstream record has no latest block.
	Latest *LatestValue
}

// LatestValue is the most recent reading of a sensor.
type LatestValue struct {
	Value        *float64
	TimestampUTC string
}

// Summary holds the statistics reported alongside a yearly aggregate.
type Summary struct {
	Min    *float64 `json:"min"`
	Q02    *float64 `json:"q02"`
	Q25    *float64 `json:"q25"`
	Median *float64 `json:"median"`
	Q75    *float64 `json:"q75"`
	Q98    *float64 `json:"q98"`
	Max    *float64 `json:"max"`
	Avg    *float64 `json:"avg"`
	SD     *float64 `json:"sd"`
}

// YearlyAggregate is one normalized yearly record from the aggregate endpoint.
type YearlyAggregate struct {
	Year    *int
	Average *float64
	Unit    string
	Summary *Summary
}

// TimestampSource tells whether a reading timestamp came from the sensor.
type TimestampSource string

const (
	TimestampFromSensor TimestampSource = "sensor"
	TimestampFallback   TimestampSource = "fallback"
)

// PollutantReading is the output of the latest-value pipeline.
type PollutantReading struct {
	City            string
	Country         string
	Value           float64
	Unit            string
	Timestamp       string
	TimestampSource TimestampSource
	Pollutant       Pollutant
	StationID       int
	SensorID        int
}

// HistoricalEvent is one reporting year of the historical pipeline.
type HistoricalEvent struct {
	Year         *int     `json:"year"`
	AverageValue *float64 `json:"average_value"`
	Unit         string   `json:"unit"`
	Summary      *Summary `json:"summary"`
}

// Package readings stores the results of scheduled air quality lookups.
package readings

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/airquery/airquery/internal/airquality"
)

// ErrInvalidRecord is returned when a record cannot be stored.
var ErrInvalidRecord = errors.New("invalid reading record")

// DefaultListLimit caps ListByCity when no limit is given.
const DefaultListLimit = 50

// Record is one stored lookup outcome. Both ok and error outcomes are kept so
// gaps in coverage stay visible.
type Record struct {
	ID      string
	City    string
	Country string

	Status  airquality.Status
	Kind    airquality.Kind
	Message string

	Parameter       string
	Value           *float64
	Unit            string
	Timestamp       string
	TimestampSource airquality.TimestampSource
	StationID       int
	SensorID        int

	ObservedAt time.Time
}

// Validate checks the fields every stored record needs.
func (r *Record) Validate() error {
	if r.City == "" {
		return errors.Join(ErrInvalidRecord, errors.New("city is required"))
	}
	if r.Status != airquality.StatusOK && r.Status != airquality.StatusError {
		return errors.Join(ErrInvalidRecord, errors.New("unknown status "+string(r.Status)))
	}
	if r.ObservedAt.IsZero() {
		return errors.Join(ErrInvalidRecord, errors.New("observed_at is required"))
	}
	return nil
}

// FromLatest builds a record from a latest-reading result.
func FromLatest(city, country string, result airquality.LatestResult, observedAt time.Time) *Record {
	record := &Record{
		ID:         uuid.NewString(),
		City:       city,
		Country:    country,
		Status:     result.Status,
		Kind:       result.Kind,
		Message:    result.Message,
		ObservedAt: observedAt.UTC(),
	}

	if data := result.LatestData; data != nil {
		value := data.Value
		record.Parameter = data.Parameter
		record.Value = &value
		record.Unit = data.Unit
		record.Timestamp = data.Timestamp
		record.TimestampSource = data.TimestampSource
		record.StationID = data.StationID
		record.SensorID = data.SensorID
	}

	return record
}

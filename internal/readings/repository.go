package readings

import "context"

// Repository defines the interface for reading persistence.
type Repository interface {
	// Save stores a record. Records are append-only.
	Save(ctx context.Context, record *Record) error

	// ListByCity returns the records for city (case-insensitive), newest first.
	// A non-positive limit means DefaultListLimit.
	ListByCity(ctx context.Context, city string, limit int) ([]*Record, error)
}

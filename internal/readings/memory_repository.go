package readings

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository, used when
// no database is configured.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records []*Record
}

// NewInMemoryRepository creates a new in-memory readings repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Save stores a copy of record.
func (r *InMemoryRepository) Save(_ context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *record
	r.records = append(r.records, &cpy)
	return nil
}

// ListByCity returns copies of the records for city, newest first.
func (r *InMemoryRepository) ListByCity(_ context.Context, city string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	r.mu.RLock()
	var matches []*Record
	for _, rec := range r.records {
		if strings.EqualFold(rec.City, city) {
			cpy := *rec
			matches = append(matches, &cpy)
		}
	}
	r.mu.RUnlock()

	// Insertion order breaks ties between equal observation times
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].ObservedAt.After(matches[j].ObservedAt)
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)

package readings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/airquery/airquery/internal/airquality"
)

const schema = `
	CREATE TABLE IF NOT EXISTS readings (
		id               UUID PRIMARY KEY,
		city             TEXT NOT NULL,
		country          TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		kind             TEXT NOT NULL DEFAULT '',
		message          TEXT NOT NULL DEFAULT '',
		parameter        TEXT NOT NULL DEFAULT '',
		value            DOUBLE PRECISION,
		unit             TEXT NOT NULL DEFAULT '',
		reading_ts       TEXT NOT NULL DEFAULT '',
		timestamp_source TEXT NOT NULL DEFAULT '',
		station_id       INTEGER NOT NULL DEFAULT 0,
		sensor_id        INTEGER NOT NULL DEFAULT 0,
		observed_at      TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS readings_city_observed_idx ON readings (lower(city), observed_at DESC);
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL readings repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the readings table and index when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create readings schema: %w", err)
	}
	return nil
}

// Save inserts a record.
func (r *PostgresRepository) Save(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO readings (
			id, city, country, status, kind, message,
			parameter, value, unit, reading_ts, timestamp_source,
			station_id, sensor_id, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.City,
		record.Country,
		string(record.Status),
		string(record.Kind),
		record.Message,
		record.Parameter,
		record.Value,
		record.Unit,
		record.Timestamp,
		string(record.TimestampSource),
		record.StationID,
		record.SensorID,
		record.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// ListByCity returns the records for city, newest first.
func (r *PostgresRepository) ListByCity(ctx context.Context, city string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT
			id, city, country, status, kind, message,
			parameter, value, unit, reading_ts, timestamp_source,
			station_id, sensor_id, observed_at
		FROM readings
		WHERE lower(city) = lower($1)
		ORDER BY observed_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, city, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			rec                    Record
			status, kind, tsSource string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.City,
			&rec.Country,
			&status,
			&kind,
			&rec.Message,
			&rec.Parameter,
			&rec.Value,
			&rec.Unit,
			&rec.Timestamp,
			&tsSource,
			&rec.StationID,
			&rec.SensorID,
			&rec.ObservedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.Status = airquality.Status(status)
		rec.Kind = airquality.Kind(kind)
		rec.TimestampSource = airquality.TimestampSource(tsSource)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

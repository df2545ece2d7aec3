package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Job types accepted on the job subscription.
const (
	JobWatchlistRefresh = "watchlist_refresh"
	JobHealthCheck      = "health_check"
)

// JobMessage is the payload of a job message.
type JobMessage struct {
	JobType string `json:"job_type"`

	// City and Country select the health check target. Defaults to the
	// first watchlist city.
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Action is the delivery decision for a message.
type Action int

const (
	ActionAck Action = iota
	ActionNack
)

func (a Action) String() string {
	if a == ActionAck {
		return "ack"
	}
	return "nack"
}

// Dispatcher maps job messages onto the watch job.
type Dispatcher struct {
	job    *WatchJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher for job.
func NewDispatcher(job *WatchJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Handle runs the job described by data. Malformed and failed jobs are
// nacked for redelivery; unknown job types are acked and dropped.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) Action {
	startTime := time.Now()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		d.logger.Error().Err(err).Msg("failed to parse message")
		return ActionNack
	}

	var err error
	switch msg.JobType {
	case JobWatchlistRefresh:
		err = d.handleWatchlistRefresh(ctx)
	case JobHealthCheck:
		err = d.handleHealthCheck(ctx, msg)
	default:
		d.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return ActionAck
	}

	if err != nil {
		d.logger.Error().Err(err).Str("job_type", msg.JobType).Msg("job failed")
		return ActionNack
	}

	d.logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	return ActionAck
}

func (d *Dispatcher) handleWatchlistRefresh(ctx context.Context) error {
	result := d.job.Run(ctx)

	// Successful when at least half the cities resolved
	if result.Failed > result.Successful {
		return fmt.Errorf("too many lookup failures: %d/%d", result.Failed, result.TotalCities)
	}
	return nil
}

func (d *Dispatcher) handleHealthCheck(ctx context.Context, msg JobMessage) error {
	target := Target{City: msg.City, Country: msg.Country}
	if target.City == "" {
		target = d.job.Targets()[0]
	}

	d.logger.Debug().Str("city", target.City).Msg("running health check")
	return d.job.RunCity(ctx, target)
}

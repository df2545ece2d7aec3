package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// DefaultInterval is the watchlist refresh period when none is configured.
const DefaultInterval = 30 * time.Minute

// Scheduler runs the watch job periodically.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *WatchJob
	interval  time.Duration
	logger    zerolog.Logger
	gocronJob *gocron.Job
}

// NewScheduler creates a scheduler for job. Intervals below one minute fall
// back to DefaultInterval.
func NewScheduler(job *WatchJob, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval < time.Minute {
		interval = DefaultInterval
	}

	s := gocron.NewScheduler(time.UTC)
	// A run still in progress skips the next tick instead of overlapping it
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		job:       job,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the job, runs it once immediately and returns. Runs stop
// when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	minutes := int(s.interval.Minutes())

	j, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Debug().Msg("scheduler: running watchlist job")
		s.job.Run(ctx)
	})
	if err != nil {
		return err
	}
	s.gocronJob = j

	s.scheduler.StartAsync()

	s.logger.Info().
		Int("interval_minutes", minutes).
		Int("cities", len(s.job.Targets())).
		Msg("scheduler started")
	return nil
}

// NextRun returns the time of the next scheduled run, or the zero time
// before Start.
func (s *Scheduler) NextRun() time.Time {
	if s.gocronJob == nil {
		return time.Time{}
	}
	return s.gocronJob.NextRun()
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

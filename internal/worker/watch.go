package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/airquery/airquery/internal/airquality"
	"github.com/airquery/airquery/internal/readings"
)

// LatestFetcher runs the latest-reading pipeline for one city.
type LatestFetcher interface {
	Latest(ctx context.Context, city, country string) airquality.LatestResult
}

// WatchJob looks up the latest reading of every watchlist city and stores
// the outcome.
type WatchJob struct {
	config     WatchConfig
	logger     zerolog.Logger
	fetcher    LatestFetcher
	repository readings.Repository
	now        func() time.Time

	metrics *WatchMetrics
}

// WatchMetrics tracks watch job statistics.
type WatchMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns         int64
	SuccessfulLookups int64
	FailedLookups     int64
	SkippedLookups    int64
	StoreFailures     int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// WatchJobConfig holds configuration for creating a WatchJob.
type WatchJobConfig struct {
	Config     WatchConfig
	Logger     zerolog.Logger
	Fetcher    LatestFetcher
	Repository readings.Repository

	// Now stamps stored records (default: time.Now).
	Now func() time.Time
}

// NewWatchJob creates a new watchlist job.
func NewWatchJob(cfg WatchJobConfig) *WatchJob {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &WatchJob{
		config:     cfg.Config.withDefaults(),
		logger:     cfg.Logger,
		fetcher:    cfg.Fetcher,
		repository: cfg.Repository,
		now:        now,
		metrics:    &WatchMetrics{},
	}
}

// Targets returns the cities the job looks up.
func (j *WatchJob) Targets() []Target {
	targets := make([]Target, len(j.config.Targets))
	copy(targets, j.config.Targets)
	return targets
}

// WatchResult contains the result of one run. TotalCities always equals
// Successful + Failed + Skipped.
type WatchResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalCities int
	Successful  int
	Failed      int

	// Skipped counts targets never looked up because the run was cancelled.
	Skipped int

	Errors []WatchError
}

// WatchError describes one failed city lookup.
type WatchError struct {
	Target  Target
	Kind    airquality.Kind
	Message string
}

type cityResult struct {
	target  Target
	success bool
	skipped bool
	err     *WatchError
}

// Run looks up every target with a bounded pool of workers. Each city's
// lookup is sequential; only distinct cities run concurrently.
func (j *WatchJob) Run(ctx context.Context) *WatchResult {
	startTime := time.Now()
	result := &WatchResult{
		StartTime:   startTime,
		TotalCities: len(j.config.Targets),
	}

	j.logger.Info().
		Int("total_cities", result.TotalCities).
		Int("concurrency", j.config.Concurrency).
		Msg("starting watchlist job")

	targetsChan := make(chan Target, len(j.config.Targets))
	resultsChan := make(chan cityResult, len(j.config.Targets))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.watchWorker(ctx, targetsChan, resultsChan)
		}()
	}

	for _, t := range j.config.Targets {
		targetsChan <- t
	}
	close(targetsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for cr := range resultsChan {
		switch {
		case cr.skipped:
			result.Skipped++
		case cr.success:
			result.Successful++
		default:
			result.Failed++
		}
		if cr.err != nil {
			result.Errors = append(result.Errors, *cr.err)
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("watchlist job completed")

	return result
}

// RunCity looks up a single target and stores the outcome.
func (j *WatchJob) RunCity(ctx context.Context, target Target) error {
	cr := j.lookup(ctx, target)
	if cr.success {
		return nil
	}
	return fmt.Errorf("lookup for %s failed: %s", target.City, cr.err.Message)
}

func (j *WatchJob) watchWorker(ctx context.Context, targets <-chan Target, results chan<- cityResult) {
	for target := range targets {
		select {
		case <-ctx.Done():
			results <- cityResult{target: target, skipped: true}
		default:
			results <- j.lookup(ctx, target)
		}
	}
}

func (j *WatchJob) lookup(ctx context.Context, target Target) cityResult {
	cityCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	latest := j.fetcher.Latest(cityCtx, target.City, target.Country)
	cr := cityResult{target: target, success: latest.Status == airquality.StatusOK}
	if !cr.success {
		cr.err = &WatchError{Target: target, Kind: latest.Kind, Message: latest.Message}
	}

	if j.repository != nil {
		record := readings.FromLatest(target.City, target.Country, latest, j.now())
		if err := j.repository.Save(ctx, record); err != nil {
			j.logger.Error().Err(err).Str("city", target.City).Msg("failed to store reading")
			j.metrics.mu.Lock()
			j.metrics.StoreFailures++
			j.metrics.mu.Unlock()
			if cr.success {
				cr.success = false
				cr.err = &WatchError{Target: target, Kind: airquality.KindTransport, Message: err.Error()}
			}
		}
	}

	return cr
}

func (j *WatchJob) updateMetrics(result *WatchResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulLookups += int64(result.Successful)
	j.metrics.FailedLookups += int64(result.Failed)
	j.metrics.SkippedLookups += int64(result.Skipped)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WatchJob) GetMetrics() WatchMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WatchMetrics{
		TotalRuns:         j.metrics.TotalRuns,
		SuccessfulLookups: j.metrics.SuccessfulLookups,
		FailedLookups:     j.metrics.FailedLookups,
		SkippedLookups:    j.metrics.SkippedLookups,
		StoreFailures:     j.metrics.StoreFailures,
		LastRunAt:         j.metrics.LastRunAt,
		LastRunDuration:   j.metrics.LastRunDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *WatchJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":         m.TotalRuns,
		"successful_lookups": m.SuccessfulLookups,
		"failed_lookups":     m.FailedLookups,
		"skipped_lookups":    m.SkippedLookups,
		"store_failures":     m.StoreFailures,
		"last_run_at":        m.LastRunAt,
		"last_run_duration":  m.LastRunDuration.String(),
		"total_duration":     m.TotalDuration.String(),
	}
}

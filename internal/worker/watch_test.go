package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airquery/airquery/internal/airquality"
	"github.com/airquery/airquery/internal/readings"
	"github.com/airquery/airquery/internal/worker"
)

// fakeFetcher returns ok for every city except those listed in failing.
type fakeFetcher struct {
	mu       sync.Mutex
	failing  map[string]bool
	calls    []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (f *fakeFetcher) Latest(ctx context.Context, city, country string) airquality.LatestResult {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxSeen.Load()
		if n <= prev || f.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, city)
	failing := f.failing[city]
	f.mu.Unlock()

	if failing {
		return airquality.LatestResult{
			Status:  airquality.StatusError,
			Kind:    airquality.KindNotFound,
			Message: "City '" + city + "' not found.",
		}
	}
	return airquality.LatestResult{
		Status: airquality.StatusOK,
		LatestData: &airquality.LatestData{
			City:      city,
			Country:   country,
			Parameter: "PM2.5",
			Value:     10,
			Unit:      airquality.DefaultUnit,
			StationID: 1,
			SensorID:  2,
		},
	}
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type failingRepository struct{}

func (failingRepository) Save(context.Context, *readings.Record) error {
	return errors.New("disk full")
}

func (failingRepository) ListByCity(context.Context, string, int) ([]*readings.Record, error) {
	return nil, nil
}

func targets(cities ...string) []worker.Target {
	out := make([]worker.Target, 0, len(cities))
	for _, c := range cities {
		out = append(out, worker.Target{City: c})
	}
	return out
}

func TestDefaultWatchConfig(t *testing.T) {
	cfg := worker.DefaultWatchConfig()

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.NotEmpty(t, cfg.Targets)
}

func TestNewWatchJob_FillsDefaults(t *testing.T) {
	job := worker.NewWatchJob(worker.WatchJobConfig{Logger: zerolog.Nop(), Fetcher: &fakeFetcher{}})
	assert.Equal(t, worker.DefaultTargets(), job.Targets())
}

func TestWatchJob_Run_StoresEveryOutcome(t *testing.T) {
	fetcher := &fakeFetcher{failing: map[string]bool{"Atlantis": true}}
	repo := readings.NewInMemoryRepository()
	observed := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

	job := worker.NewWatchJob(worker.WatchJobConfig{
		Config:     worker.WatchConfig{Targets: targets("Paris", "Atlantis", "Delhi"), Concurrency: 2, Timeout: time.Second},
		Logger:     zerolog.Nop(),
		Fetcher:    fetcher,
		Repository: repo,
		Now:        func() time.Time { return observed },
	})

	result := job.Run(context.Background())

	assert.Equal(t, 3, result.TotalCities)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Atlantis", result.Errors[0].Target.City)
	assert.Equal(t, airquality.KindNotFound, result.Errors[0].Kind)
	assert.Equal(t, 3, fetcher.callCount())

	stored, err := repo.ListByCity(context.Background(), "Atlantis", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, airquality.StatusError, stored[0].Status)
	assert.Equal(t, observed, stored[0].ObservedAt)

	stored, err = repo.ListByCity(context.Background(), "Paris", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].Value)
	assert.InDelta(t, 10.0, *stored[0].Value, 1e-9)
}

func TestWatchJob_Run_BoundedConcurrency(t *testing.T) {
	fetcher := &fakeFetcher{delay: 20 * time.Millisecond}
	cities := make([]string, 10)
	for i := range cities {
		cities[i] = "City" + string(rune('A'+i))
	}

	job := worker.NewWatchJob(worker.WatchJobConfig{
		Config:  worker.WatchConfig{Targets: targets(cities...), Concurrency: 3, Timeout: time.Second},
		Logger:  zerolog.Nop(),
		Fetcher: fetcher,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 10, result.Successful)
	assert.LessOrEqual(t, fetcher.maxSeen.Load(), int32(3))
}

func TestWatchJob_Run_StoreFailureCountsAsFailed(t *testing.T) {
	job := worker.NewWatchJob(worker.WatchJobConfig{
		Config:     worker.WatchConfig{Targets: targets("Paris"), Concurrency: 1, Timeout: time.Second},
		Logger:     zerolog.Nop(),
		Fetcher:    &fakeFetcher{},
		Repository: failingRepository{},
	})

	result := job.Run(context.Background())

	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "disk full")
	assert.Equal(t, int64(1), job.GetMetrics().StoreFailures)
}

func TestWatchJob_Run_ContextCancellation(t *testing.T) {
	cities := make([]string, 50)
	for i := range cities {
		cities[i] = "City" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	fetcher := &fakeFetcher{}

	job := worker.NewWatchJob(worker.WatchJobConfig{
		Config:  worker.WatchConfig{Targets: targets(cities...), Concurrency: 2, Timeout: time.Second},
		Logger:  zerolog.Nop(),
		Fetcher: fetcher,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)

	assert.Equal(t, 50, result.TotalCities)
	assert.Equal(t, 50, result.Skipped)
	assert.Zero(t, result.Successful+result.Failed)
	assert.Zero(t, fetcher.callCount())
	assert.Equal(t, int64(50), job.GetMetrics().SkippedLookups)
}

func TestWatchJob_Run_CancelledMidRunAccountsForEveryCity(t *testing.T) {
	cities := make([]string, 20)
	for i := range cities {
		cities[i] = "City" + string(rune('a'+i))
	}
	fetcher := &fakeFetcher{delay: 20 * time.Millisecond}
	store := readings.NewInMemoryRepository()

	job := worker.NewWatchJob(worker.WatchJobConfig{
		Config:     worker.WatchConfig{Targets: targets(cities...), Concurrency: 2, Timeout: time.Second},
		Logger:     zerolog.Nop(),
		Fetcher:    fetcher,
		Repository: store,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result := job.Run(ctx)

	assert.Equal(t, 20, result.TotalCities)
	assert.Equal(t, result.TotalCities, result.Successful+result.Failed+result.Skipped)
	assert.Positive(t, result.Skipped)
	assert.Equal(t, fetcher.callCount(), result.Successful+result.Failed)
}

func TestWatchJob_Metrics(t *testing.T) {
	job := worker.NewWatchJob(worker.WatchJobConfig{
		Config:  worker.WatchConfig{Targets: targets("Paris", "Atlantis")},
		Logger:  zerolog.Nop(),
		Fetcher: &fakeFetcher{failing: map[string]bool{"Atlantis": true}},
	})

	_ = job.Run(context.Background())
	_ = job.Run(context.Background())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(2), metrics.TotalRuns)
	assert.Equal(t, int64(2), metrics.SuccessfulLookups)
	assert.Equal(t, int64(2), metrics.FailedLookups)
	assert.NotZero(t, metrics.LastRunAt)

	snapshot := job.MetricsSnapshot()
	assert.Contains(t, snapshot, "total_runs")
	assert.Contains(t, snapshot, "successful_lookups")
	assert.Contains(t, snapshot, "failed_lookups")
	assert.Contains(t, snapshot, "last_run_at")
	assert.Contains(t, snapshot, "last_run_duration")
}

func TestWatchJob_RunCity(t *testing.T) {
	fetcher := &fakeFetcher{failing: map[string]bool{"Atlantis": true}}
	job := worker.NewWatchJob(worker.WatchJobConfig{Logger: zerolog.Nop(), Fetcher: fetcher})

	assert.NoError(t, job.RunCity(context.Background(), worker.Target{City: "Paris"}))

	err := job.RunCity(context.Background(), worker.Target{City: "Atlantis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "City 'Atlantis' not found.")
}

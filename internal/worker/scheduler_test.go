package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airquery/airquery/internal/worker"
)

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	fetcher := &fakeFetcher{}
	job := worker.NewWatchJob(worker.WatchJobConfig{
		Config:  worker.WatchConfig{Targets: targets("Paris"), Concurrency: 1, Timeout: time.Second},
		Logger:  zerolog.Nop(),
		Fetcher: fetcher,
	})

	s := worker.NewScheduler(job, time.Hour, zerolog.Nop())
	assert.True(t, s.NextRun().IsZero())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		return job.GetMetrics().TotalRuns >= 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, fetcher.callCount())
}

func TestScheduler_CancelledContextSkipsRun(t *testing.T) {
	fetcher := &fakeFetcher{}
	job := worker.NewWatchJob(worker.WatchJobConfig{
		Config:  worker.WatchConfig{Targets: targets("Paris")},
		Logger:  zerolog.Nop(),
		Fetcher: fetcher,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := worker.NewScheduler(job, 0, zerolog.Nop())
	require.NoError(t, s.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Zero(t, fetcher.callCount())
}

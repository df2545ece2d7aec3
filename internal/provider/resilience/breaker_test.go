package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"

	"github.com/airquery/airquery/internal/provider/resilience"
)

func TestDefaultBreakerPolicy(t *testing.T) {
	p := resilience.DefaultBreakerPolicy()

	assert.Equal(t, uint32(5), p.ConsecutiveFailures)
	assert.Equal(t, uint32(10), p.MinRequests)
	assert.Equal(t, 30*time.Second, p.Cooldown)
	assert.Equal(t, uint32(1), p.Probes)
}

func TestBreakerPolicy_ShouldTrip(t *testing.T) {
	p := resilience.DefaultBreakerPolicy()

	tests := []struct {
		name     string
		counts   gobreaker.Counts
		expected bool
	}{
		{
			name:     "few failures",
			counts:   gobreaker.Counts{Requests: 4, TotalFailures: 4, ConsecutiveFailures: 4},
			expected: false,
		},
		{
			name:     "consecutive failures",
			counts:   gobreaker.Counts{Requests: 5, TotalFailures: 5, ConsecutiveFailures: 5},
			expected: true,
		},
		{
			name:     "low failure ratio",
			counts:   gobreaker.Counts{Requests: 10, TotalFailures: 4, ConsecutiveFailures: 1},
			expected: false,
		},
		{
			name:     "high failure ratio",
			counts:   gobreaker.Counts{Requests: 10, TotalFailures: 5, ConsecutiveFailures: 1},
			expected: true,
		},
		{
			name:     "ratio ignored below min requests",
			counts:   gobreaker.Counts{Requests: 9, TotalFailures: 8, ConsecutiveFailures: 2},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.ShouldTrip(tt.counts))
		})
	}
}

func TestBreakerPolicy_ZeroDisablesRules(t *testing.T) {
	var p resilience.BreakerPolicy
	assert.False(t, p.ShouldTrip(gobreaker.Counts{Requests: 100, TotalFailures: 100, ConsecutiveFailures: 100}))
}

func TestCountsAsFailure(t *testing.T) {
	assert.False(t, resilience.CountsAsFailure(nil))
	assert.False(t, resilience.CountsAsFailure(context.Canceled))
	assert.False(t, resilience.CountsAsFailure(fmt.Errorf("get: %w", context.Canceled)))
	assert.True(t, resilience.CountsAsFailure(context.DeadlineExceeded))
	assert.True(t, resilience.CountsAsFailure(errors.New("connection refused")))
}

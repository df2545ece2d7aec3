// Package resilience guards calls to the geocoder and the measurement
// network with a per-request timeout, a circuit breaker per upstream and
// health tracking for the ops endpoints.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerPolicy decides when an upstream is considered down.
type BreakerPolicy struct {
	// ConsecutiveFailures trips the breaker on its own.
	// Default: 5
	ConsecutiveFailures uint32

	// FailureRatio trips the breaker once MinRequests have been seen in
	// the current window.
	// Default: 0.5 over 10 requests
	FailureRatio float64
	MinRequests  uint32

	// Window is the period after which a closed breaker forgets its counts.
	// Default: 1 minute
	Window time.Duration

	// Cooldown is how long the breaker stays open before letting probes through.
	// Default: 30 seconds
	Cooldown time.Duration

	// Probes is the number of requests allowed while half-open.
	// Default: 1
	Probes uint32
}

// DefaultBreakerPolicy returns the policy used for every upstream.
func DefaultBreakerPolicy() BreakerPolicy {
	return BreakerPolicy{
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
		Window:              time.Minute,
		Cooldown:            30 * time.Second,
		Probes:              1,
	}
}

// ShouldTrip reports whether counts warrant opening the breaker.
func (p BreakerPolicy) ShouldTrip(counts gobreaker.Counts) bool {
	if p.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= p.ConsecutiveFailures {
		return true
	}
	if p.MinRequests == 0 || counts.Requests < p.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.FailureRatio
}

// CountsAsFailure reports whether err says something about the upstream.
// A request abandoned by its caller does not.
func CountsAsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func newBreaker(name string, p BreakerPolicy, onChange func(from, to gobreaker.State)) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: p.Probes,
		Interval:    p.Window,
		Timeout:     p.Cooldown,
		ReadyToTrip: p.ShouldTrip,
		IsSuccessful: func(err error) bool {
			return !CountsAsFailure(err)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if onChange != nil {
				onChange(from, to)
			}
		},
	})
}

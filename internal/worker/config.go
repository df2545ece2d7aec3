// Package worker runs scheduled and message-triggered air quality lookups
// for a watchlist of cities.
package worker

import (
	"time"
)

// Target is one watchlist city.
type Target struct {
	City    string
	Country string
}

// WatchConfig holds configuration for the watchlist job.
type WatchConfig struct {
	// Targets are the cities to look up.
	// If empty, uses DefaultTargets.
	Targets []Target

	// Concurrency is the number of cities looked up at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the lookup of one city.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultWatchConfig returns the default watchlist configuration.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Targets:     DefaultTargets(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultTargets returns a small set of large cities with dense monitoring networks.
func DefaultTargets() []Target {
	return []Target{
		{City: "London", Country: "United Kingdom"},
		{City: "Paris", Country: "France"},
		{City: "Delhi", Country: "India"},
		{City: "Los Angeles", Country: "USA"},
		{City: "Beijing", Country: "China"},
	}
}

// withDefaults fills zero fields from DefaultWatchConfig.
func (c WatchConfig) withDefaults() WatchConfig {
	def := DefaultWatchConfig()
	if len(c.Targets) == 0 {
		c.Targets = def.Targets
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

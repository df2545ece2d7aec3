package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/airquery/airquery/internal/telemetry"
)

// ErrCircuitOpen is returned without a network call while an upstream's
// breaker is open or its half-open probes are in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the upstream in health, metrics and logs.
	Name string

	// Timeout bounds each HTTP call including reading the headers.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a 5xx or network
	// error. Zero means a single attempt.
	MaxRetries uint64

	// RetryInterval is the first backoff delay; later delays grow
	// exponentially up to ten times this value.
	// Default: 100ms
	RetryInterval time.Duration

	// Breaker is the trip policy. The zero value uses DefaultBreakerPolicy.
	Breaker BreakerPolicy

	// Registry, when set, tracks this client's health.
	Registry *Registry

	// Metrics, when set, records per-request duration and outcome.
	Metrics *telemetry.ProviderMetrics

	// Logger receives breaker state transitions.
	Logger zerolog.Logger
}

// DefaultClientConfig returns the defaults for upstream calls: a 10 second
// timeout and no retries.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:          name,
		Timeout:       10 * time.Second,
		RetryInterval: 100 * time.Millisecond,
		Breaker:       DefaultBreakerPolicy(),
		Logger:        zerolog.Nop(),
	}
}

// Client executes requests against one upstream. It satisfies the HTTPDoer
// interfaces of the geocoder and measurement clients.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
}

// NewClient creates a resilient client and registers it with cfg.Registry
// when one is given.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	if cfg.Breaker == (BreakerPolicy{}) {
		cfg.Breaker = DefaultBreakerPolicy()
	}

	c := &Client{
		name:       cfg.Name,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
	}
	c.breaker = newBreaker(cfg.Name, cfg.Breaker, c.transition) //nolint:bodyclose // type param, not response

	if cfg.Registry != nil {
		cfg.Registry.track(cfg.Name, c)
	}
	return c
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.name
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker counts for the current window.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do executes req through the breaker. A 5xx that survives every attempt is
// returned as a response with a nil error so callers can report the status.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.execute(req)
	c.observe(req.Method, time.Since(start), resp, err)
	return resp, err
}

func (c *Client) execute(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.RetryInterval
	bo.MaxInterval = 10 * c.config.RetryInterval
	bo.MaxElapsedTime = 0

	var last *http.Response
	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			resp, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return resp, &StatusError{Provider: c.name, StatusCode: resp.StatusCode}
			}
			return resp, nil
		})

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("%s: %w", c.name, ErrCircuitOpen))
		}
		if resp != nil {
			discard(last)
			last = resp
		}
		if errors.Is(err, context.Canceled) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && last != nil {
			return last, nil
		}
		discard(last)
		return nil, err
	}
	return last, nil
}

// observe reports the outcome to the registry and metrics.
func (c *Client) observe(method string, elapsed time.Duration, resp *http.Response, err error) {
	outcome := err
	if outcome == nil && resp != nil && resp.StatusCode >= http.StatusBadRequest {
		outcome = &StatusError{Provider: c.name, StatusCode: resp.StatusCode}
	}

	if c.config.Metrics != nil {
		c.config.Metrics.RecordRequest(c.name, method, elapsed, outcome)
	}

	if c.config.Registry != nil {
		if outcome != nil {
			c.config.Registry.recordFailure(c.name, outcome)
		} else {
			c.config.Registry.recordSuccess(c.name)
		}
	}
}

func (c *Client) transition(from, to gobreaker.State) {
	event := c.config.Logger.Info()
	if to == gobreaker.StateOpen {
		event = c.config.Logger.Warn()
	}
	event.
		Str("provider", c.name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("circuit breaker state changed")

	if c.config.Registry != nil {
		c.config.Registry.recordTransition(c.name)
	}
}

// StatusError is an HTTP error status returned by an upstream.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode))
}

func discard(resp *http.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

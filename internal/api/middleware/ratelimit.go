package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/airquery/airquery/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Requests per window
	RequestLimit int
	// Window duration
	WindowLength time.Duration
}

// Default rate limit configurations.
var (
	// QueryRateLimit applies to prompts answered by the hosted model (10 req/min).
	QueryRateLimit = RateLimitConfig{
		RequestLimit: 10,
		WindowLength: time.Minute,
	}

	// LookupRateLimit applies to direct pipeline lookups, each of which fans
	// out to several upstream calls (30 req/min).
	LookupRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP creates a rate limiter keyed by client IP. True-Client-IP,
// X-Real-IP and X-Forwarded-For take precedence over the remote address.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceededHandler(cfg.WindowLength)),
	)
}

// rateLimitResetHeader is set by httprate to the unix time the current
// window ends.
const rateLimitResetHeader = "X-RateLimit-Reset"

// rateLimitExceededHandler writes an RFC7807 problem. Retry-After counts
// down to the end of the current window, never below one second.
func rateLimitExceededHandler(window time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		problem.Instance = r.URL.Path

		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(w.Header().Get(rateLimitResetHeader), window, time.Now())))
		problem.Write(w)
	}
}

func retryAfterSeconds(reset string, window time.Duration, now time.Time) int {
	full := int(math.Ceil(window.Seconds()))
	unix, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return full
	}
	remaining := int(math.Ceil(time.Unix(unix, 0).Sub(now).Seconds()))
	switch {
	case remaining < 1:
		return 1
	case remaining > full:
		return full
	default:
		return remaining
	}
}

// Package ratelimiter wraps golang.org/x/time/rate with a token-bucket
// limiter used to throttle requests on a single client connection.
package ratelimiter

import (
	"golang.org/x/time/rate"
)

// RateLimiter throttles requests with a token bucket. Tokens refill at the
// sustained rate; burst is the bucket capacity. Safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New builds a limiter allowing requestsPerSecond sustained with the given
// burst capacity. A zero rate disables limiting entirely.
func New(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Allow consumes a token if one is available and reports whether the request
// may proceed. It never blocks.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

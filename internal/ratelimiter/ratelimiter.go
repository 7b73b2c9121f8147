// Package ratelimiter throttles commands on a single client connection.
//
// Each line protocol connection may own one RateLimiter. Commands over the
// configured rate wait for a token instead of being dropped, so a client that
// pipelines many lines is slowed down but never loses a response.
package ratelimiter

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket: tokens refill at commandsPerSecond and the
// bucket holds at most burst tokens.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing commandsPerSecond sustained and burst
// commands at once.
//
// A zero commandsPerSecond means unlimited. A zero burst with a non-zero rate
// is raised to 1, since a bucket of size 0 would never admit a command.
func New(commandsPerSecond, burst uint) *RateLimiter {
	if commandsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = 1
	}
	if burst > math.MaxInt32 {
		burst = math.MaxInt32
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(commandsPerSecond), int(burst)),
	}
}

// Wait blocks until a token is available or ctx is done.
//
// Returns the context error if ctx ends first, or an error if the wait could
// never be satisfied before ctx's deadline.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Package ratelimiter throttles connection admission with a token bucket.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate for the accept loop.
//
// Tokens are added at a constant rate, each admitted connection consumes
// one, and the bucket size bounds how many connections can be admitted back
// to back after an idle period.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter admitting perSecond connections per second with
// the given burst. perSecond == 0 disables limiting. A zero burst with a
// non-zero rate is raised to 1, otherwise nothing would ever be admitted.
func New(perSecond, burst uint) *RateLimiter {
	if perSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(burst)),
	}
}

// Allow consumes a token if one is available, without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Admit takes a token, waiting for one if the bucket is empty. throttled
// reports whether the caller had to wait. The error is the context's when
// it ends before a token frees up.
func (r *RateLimiter) Admit(ctx context.Context) (throttled bool, err error) {
	if r.Allow() {
		return false, nil
	}
	return true, r.Wait(ctx)
}

// Tokens returns the number of tokens currently in the bucket. Useful for
// monitoring only: the value is stale as soon as it is returned.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}

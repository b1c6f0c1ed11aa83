package utils

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces browser navigations so the source site is not hammered
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows one action per delayMs milliseconds. A non-positive delay disables pacing.
func NewRateLimiter(delayMs int) *RateLimiter {
	if delayMs <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Duration(delayMs)*time.Millisecond), 1),
	}
}

// Wait blocks until the next action is allowed or ctx is done
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Package ratelimit throttles outbound provider calls per channel.
package ratelimit

import "context"

// RateLimiter controls send throughput per channel.
type RateLimiter interface {
	Allow(ctx context.Context, channel string) (bool, error)
	Wait(ctx context.Context, channel string) error
}

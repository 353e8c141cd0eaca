package transport

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter builds the per-connection inbound throttle: up to burst
// messages at once, refilled over the given interval. Non-positive values
// fall back to one message per second.
func newRateLimiter(burst int, interval time.Duration) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return rate.NewLimiter(rate.Limit(float64(burst)/interval.Seconds()), burst)
}

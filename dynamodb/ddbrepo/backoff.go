package ddbrepo

import (
	"math/rand/v2"
	"time"
)

// BackoffFunc returns how long to wait before retry attempt n.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff returns a capped exponential backoff with full
// jitter: rand(0, min(cap, base * multiplier^attempt)).
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func ExponentialBackoff(base time.Duration, multiplier float64, cap time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		factor := 1.0
		for i := 0; i < attempt; i++ {
			factor *= multiplier
		}
		backoff := time.Duration(float64(base) * factor)
		if backoff > cap {
			backoff = cap
		}
		if backoff <= 0 {
			return 0
		}
		return time.Duration(rand.Int64N(int64(backoff)))
	}
}

// DefaultBackoff is ExponentialBackoff with 50ms base, 2x multiplier, 5s cap.
var DefaultBackoff = ExponentialBackoff(50*time.Millisecond, 2.0, 5*time.Second)

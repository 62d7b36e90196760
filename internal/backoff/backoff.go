// Package backoff computes the exponential delay the dispatcher sleeps
// between retries on the same provider instance, per spec §4.4. It holds
// no state of its own beyond the constants — the dispatcher tracks the
// attempt counter and resets it to 0 on success.
package backoff

import (
	"math"
	"time"
)

const (
	base     = 1 * time.Second
	capDelay = 300 * time.Second
)

// Delay returns min(base*2^attempt, cap). No jitter: spec §8's backoff
// monotonicity property requires a deterministic non-decreasing sequence,
// which randomized jitter would violate.
func Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(base) * math.Pow(2, float64(attempt))
	if d > float64(capDelay) {
		return capDelay
	}
	return time.Duration(d)
}

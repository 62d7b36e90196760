package ratebudget

import "time"

// maxSamples bounds memory per (metric, window) pair. When the cap
// engages, the oldest retained sample is evicted even if it has not yet
// expired, so usage becomes an approximation — an intentional
// memory/accuracy trade-off per spec §4.1.1.
const maxSamples = 4000

type sample struct {
	at     time.Duration
	amount float64
}

// slidingWindow is a time-ordered sequence of (timestamp, amount) pairs
// for one (metric, window) pair, summed to produce current usage.
type slidingWindow struct {
	windowSeconds int64
	limit         float64
	samples       []sample
	sum           float64
}

func newSlidingWindow(windowSeconds int64, limit float64) *slidingWindow {
	return &slidingWindow{windowSeconds: windowSeconds, limit: limit}
}

// expire drops every sample older than the window width, per spec
// §3 invariant 3 ("never retain samples older than the widest configured
// window").
func (w *slidingWindow) expire(now time.Duration) {
	cutoff := now - time.Duration(w.windowSeconds)*time.Second
	i := 0
	for ; i < len(w.samples); i++ {
		if w.samples[i].at > cutoff {
			break
		}
		w.sum -= w.samples[i].amount
	}
	if i > 0 {
		w.samples = w.samples[i:]
	}
}

// check reports whether usage+amount would exceed the limit, without
// recording the sample.
func (w *slidingWindow) check(now time.Duration, amount float64, k limitKey) *Denial {
	w.expire(now)
	if w.sum+amount <= w.limit {
		return nil
	}
	retryAfter := 0.0
	if len(w.samples) > 0 {
		oldest := w.samples[0]
		elapsed := now - oldest.at
		remaining := time.Duration(w.windowSeconds)*time.Second - elapsed
		if remaining > 0 {
			retryAfter = remaining.Seconds()
		}
	}
	return &Denial{Metric: k.metric, Window: k.window, RetryAfterSeconds: retryAfter}
}

// add records a new sample and, if the bounded tail is exceeded, evicts
// the oldest one regardless of age.
func (w *slidingWindow) add(now time.Duration, amount float64) {
	w.expire(now)
	w.samples = append(w.samples, sample{at: now, amount: amount})
	w.sum += amount
	if len(w.samples) > maxSamples {
		evicted := w.samples[0]
		w.samples = w.samples[1:]
		w.sum -= evicted.amount
	}
}

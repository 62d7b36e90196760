// Package keypool implements the round-robin Key Rotator of spec §4.2:
// a cursor over a fixed array of credentials, each paired with a rate
// budget tracker, with consecutive-failure cooldown and re-enablement.
package keypool

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/clock"
	"github.com/cortexhub/llmgateway/internal/ratebudget"
)

// disableThreshold is the consecutive-failure count that triggers a
// cooldown (spec §4.2: "if count ≥ 3").
const disableThreshold = 3

// defaultCooldown is applied when a key is disabled (spec §4.2 default).
const defaultCooldown = 600 * time.Second

// Key pairs one credential with its tracker and failure bookkeeping.
type Key struct {
	Credential string
	Index      int
	Tracker    *ratebudget.Tracker

	consecutiveFailures int
	disabledUntil       time.Time // zero value means enabled
	lastUsedAt          time.Time
}

// Enabled reports whether the key is currently usable, independent of
// whatever its tracker's budget allows.
func (k *Key) Enabled(now time.Time) bool {
	return k.disabledUntil.IsZero() || !now.Before(k.disabledUntil)
}

// State is a point-in-time snapshot of a Key for the stats endpoint.
type State struct {
	Index               int
	ConsecutiveFailures int
	Enabled             bool
	DisabledUntil       time.Time
	LastUsedAt          time.Time
	RateLimited         bool
	Usage               []ratebudget.LimitUsage
}

// Rotator is the Key Rotator of one Provider Instance.
type Rotator struct {
	clock    clock.Clock
	logger   *zap.Logger
	cooldown time.Duration

	mu     sync.Mutex
	keys   []*Key
	cursor int
}

// New builds a Rotator over the given keys, each already bound to a
// fresh Tracker.
func New(keys []*Key, clk clock.Clock, logger *zap.Logger) *Rotator {
	return &Rotator{
		clock:    clk,
		logger:   logger,
		cooldown: defaultCooldown,
		keys:     keys,
	}
}

// Next implements spec §4.2's next(required_charge): re-enable expired
// cooldowns, then scan from the cursor for the first key whose own
// pre-flight charge (§4.1.4: one request plus that key's
// credits_per_request) passes its tracker, advancing the cursor past
// whatever it returns. Each key evaluates its own PreflightCharge()
// rather than a caller-supplied charge, so a key's credit cost is
// always part of the admission check (§3.1).
func (r *Rotator) Next() (*Key, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.keys) == 0 {
		return nil, false
	}

	now := r.clock.Now()
	for _, k := range r.keys {
		if !k.disabledUntil.IsZero() && k.Enabled(now) {
			k.consecutiveFailures = 0
			k.disabledUntil = time.Time{}
		}
	}

	n := len(r.keys)
	for i := 0; i < n; i++ {
		idx := (r.cursor + i) % n
		k := r.keys[idx]
		if !k.Enabled(now) {
			continue
		}
		if allowed, _ := k.Tracker.Check(k.Tracker.PreflightCharge()); !allowed {
			continue
		}
		r.cursor = (idx + 1) % n
		k.lastUsedAt = now
		return k, true
	}
	return nil, false
}

// RecordFailure increments the key's consecutive-failure tally and
// disables it once the threshold is reached.
func (r *Rotator) RecordFailure(k *Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k.consecutiveFailures++
	if k.consecutiveFailures >= disableThreshold {
		k.disabledUntil = r.clock.Now().Add(r.cooldown)
		r.logger.Warn("key disabled after consecutive failures",
			zap.Int("key_index", k.Index),
			zap.Int("failures", k.consecutiveFailures))
	}
}

// RecordSuccess clears the key's failure tally and any disable.
func (r *Rotator) RecordSuccess(k *Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k.consecutiveFailures = 0
	k.disabledUntil = time.Time{}
}

// Keys returns the rotator's underlying keys, for the metrics snapshot
// writer to reach each key's Tracker directly.
func (r *Rotator) Keys() []*Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Key, len(r.keys))
	copy(out, r.keys)
	return out
}

// States returns a snapshot of every key's bookkeeping for the stats
// endpoint.
func (r *Rotator) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	out := make([]State, len(r.keys))
	for i, k := range r.keys {
		allowed, _ := k.Tracker.Check(k.Tracker.PreflightCharge())
		out[i] = State{
			Index:               k.Index,
			ConsecutiveFailures: k.consecutiveFailures,
			Enabled:             k.Enabled(now),
			DisabledUntil:       k.disabledUntil,
			LastUsedAt:          k.lastUsedAt,
			RateLimited:         !allowed,
			Usage:               k.Tracker.Usage(),
		}
	}
	return out
}

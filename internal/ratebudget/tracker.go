// Package ratebudget implements the per-credential rate and credit
// accounting contract of spec §4.1: sliding-window limits for requests
// and tokens, calendar-aligned token-bucket limits for credits, and a
// pre-flight/post-flight charge protocol the Key Rotator and Provider
// Instance drive around every upstream call.
package ratebudget

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/clock"
	"github.com/cortexhub/llmgateway/internal/config"
)

// Charge is the amount a single request consumes of a budget, computed
// differently before and after the upstream call returns (§4.1.4).
type Charge struct {
	Requests         float64
	Tokens           float64
	PromptTokens     float64
	CompletionTokens float64
	Credits          float64
}

// Denial names the soonest-resolving limit that rejected a charge.
type Denial struct {
	Metric            config.Metric
	Window            config.Window
	RetryAfterSeconds float64
}

// Tracker is one per credential per provider-instance binding, guarded by
// a single mutex per spec §5 ("A per-tracker mutex... is required").
type Tracker struct {
	clock  clock.Clock
	logger *zap.Logger

	mu       sync.Mutex
	sliding  map[limitKey]*slidingWindow
	calendar map[config.Window]*calendarWindow

	creditsPerIn   float64
	creditsPerOut  float64
	creditsPerMTok float64
	creditsPerReq  float64
}

type limitKey struct {
	metric config.Metric
	window config.Window
}

// New builds a Tracker from a derived effective budget.
func New(budget config.EffectiveBudget, clk clock.Clock, logger *zap.Logger) *Tracker {
	t := &Tracker{
		clock:          clk,
		logger:         logger,
		sliding:        make(map[limitKey]*slidingWindow),
		calendar:       make(map[config.Window]*calendarWindow),
		creditsPerIn:   budget.CreditsPerIn,
		creditsPerOut:  budget.CreditsPerOut,
		creditsPerMTok: budget.CreditsPerMTok,
		creditsPerReq:  budget.CreditsPerReq,
	}
	for _, limit := range budget.Limits {
		k := limitKey{limit.Metric, limit.Window}
		t.sliding[k] = newSlidingWindow(limit.Window.Seconds(), limit.Limit)
	}
	for _, cw := range budget.CreditWindows {
		t.calendar[cw.Window] = newCalendarWindow(cw.Window, cw.Gain, cw.Max, clk.Now())
	}
	return t
}

// PreflightCharge is the charge used before the upstream call, when token
// counts are not yet known (§4.1.4): one request, zero tokens, only the
// flat per-request credit cost.
func (t *Tracker) PreflightCharge() Charge {
	return Charge{Requests: 1, Credits: t.creditsPerReq}
}

// PostflightCharge computes the actual charge from observed token counts,
// per the §4.1.3 formula. Callers pass the raw (unscaled) token counts
// reported by the upstream: the token multiplier is already baked into
// both the sliding-window limit (divided at derivation time, see
// config.DeriveEffectiveBudget) and the per-unit credit price (multiplied
// at derivation time), so scaling the operand here as well would apply
// the multiplier twice. credits_per_request is NOT included here: the
// pre-flight commit already charged it once (§4.1.4), and §4.1.3's total
// per-request credit charge includes it exactly once.
func (t *Tracker) PostflightCharge(promptTokens, completionTokens float64) Charge {
	tokens := promptTokens + completionTokens
	credits := promptTokens*t.creditsPerIn + completionTokens*t.creditsPerOut +
		(tokens/1_000_000)*t.creditsPerMTok
	return Charge{
		Tokens:           tokens,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Credits:          credits,
	}
}

// Check evaluates every configured (metric, window) limit against current
// usage plus charge and every calendar credit window against charge.Credits.
// It returns the soonest-resolving denial, or Allowed with a nil Denial.
func (t *Tracker) Check(charge Charge) (allowed bool, denial *Denial) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Monotonic()
	var soonest *Denial

	consider := func(d *Denial) {
		if d == nil {
			return
		}
		if soonest == nil || d.RetryAfterSeconds < soonest.RetryAfterSeconds {
			soonest = d
		}
	}

	for k, w := range t.sliding {
		amount := chargeAmount(charge, k.metric)
		if amount == 0 {
			continue
		}
		consider(w.check(now, amount, k))
	}

	wallNow := t.clock.Now()
	if charge.Credits > 0 {
		for window, cw := range t.calendar {
			cw.advance(wallNow)
			if cw.balance < charge.Credits {
				consider(&Denial{Metric: config.MetricCredits, Window: window, RetryAfterSeconds: cw.secondsToRefill(wallNow)})
			}
		}
	}

	if soonest != nil {
		return false, soonest
	}
	return true, nil
}

// Commit records a charge unconditionally — post-flight commits always
// succeed even if they would have been denied pre-flight (§4.1.4): the
// cost has already been paid, so the balance may go transiently negative.
func (t *Tracker) Commit(charge Charge) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Monotonic()
	for k, w := range t.sliding {
		amount := chargeAmount(charge, k.metric)
		if amount != 0 {
			w.add(now, amount)
		}
	}

	if charge.Credits != 0 {
		wallNow := t.clock.Now()
		for _, cw := range t.calendar {
			cw.advance(wallNow)
			cw.balance -= charge.Credits
		}
	}
}

// LimitUsage is one (metric, window) limit's current usage, for the
// providers/stats endpoint's per-key `{used, limit}` reporting.
type LimitUsage struct {
	Metric config.Metric
	Window config.Window
	Used   float64
	Limit  float64
}

// Usage returns the current usage of every configured sliding-window
// limit, expiring stale samples as of now. Safe to call concurrently
// with Check/Commit.
func (t *Tracker) Usage() []LimitUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Monotonic()
	out := make([]LimitUsage, 0, len(t.sliding))
	for k, w := range t.sliding {
		w.expire(now)
		out = append(out, LimitUsage{Metric: k.metric, Window: k.window, Used: w.sum, Limit: w.limit})
	}
	return out
}

func chargeAmount(c Charge, metric config.Metric) float64 {
	switch metric {
	case config.MetricRequests:
		return c.Requests
	case config.MetricTokens:
		return c.Tokens
	case config.MetricPromptTokens:
		return c.PromptTokens
	case config.MetricCompletionTokens:
		return c.CompletionTokens
	default:
		return 0
	}
}

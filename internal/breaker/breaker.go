// Package breaker implements the three-state circuit breaker of spec
// §4.3, scoped one per Provider Instance.
package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/cortexhub/llmgateway/internal/clock"
)

// State is one of the breaker's three states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

const (
	failureThreshold = 5
	successThreshold = 2
	openDuration     = 60 * time.Second
)

// Breaker is a per-provider-instance circuit breaker. Permit/RecordSuccess/
// RecordFailure are driven directly by the Provider Instance rather than
// wrapping a single fn call, because a failure can occur anywhere between
// Permit and the call completing (key exhaustion, translation error).
type Breaker struct {
	clock  clock.Clock
	logger *zap.Logger

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	consecutiveSuccess  int
	openedAt            time.Time

	halfOpenGate *semaphore.Weighted
	probeHeld    bool
}

// New builds a Breaker in the closed state.
func New(clk clock.Clock, logger *zap.Logger) *Breaker {
	return &Breaker{
		clock:        clk,
		logger:       logger,
		state:        StateClosed,
		halfOpenGate: semaphore.NewWeighted(1),
	}
}

// Permit reports whether an attempt may proceed, per spec §4.3/§4.8.
// In the half-open state it also claims the one-slot probe gate; the
// caller must call RecordSuccess or RecordFailure to release it.
func (b *Breaker) Permit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.clock.Now().Before(b.openedAt.Add(openDuration)) {
			return false
		}
		b.transitionTo(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.probeHeld {
			return false
		}
		if !b.halfOpenGate.TryAcquire(1) {
			return false
		}
		b.probeHeld = true
		return true
	default:
		return false
	}
}

// RecordSuccess registers a successful attempt.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0

	switch b.state {
	case StateHalfOpen:
		b.releaseProbe()
		b.consecutiveSuccess++
		if b.consecutiveSuccess >= successThreshold {
			b.transitionTo(StateClosed)
		}
	case StateClosed:
		b.consecutiveSuccess = 0
	}
}

// RecordFailure registers a failed attempt.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveSuccess = 0

	switch b.state {
	case StateHalfOpen:
		b.releaseProbe()
		b.transitionTo(StateOpen)
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= failureThreshold {
			b.transitionTo(StateOpen)
		}
	}
}

// State returns the current state for the stats endpoint.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot captures the durable fields spec §6.3 persists: breaker
// state and consecutive-failure count. In-flight probe state is not
// persisted — a restored half-open breaker simply re-admits a probe.
type Snapshot struct {
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// Snapshot returns the current durable state for the metrics snapshot
// writer.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{State: b.state, ConsecutiveFailures: b.consecutiveFailures, OpenedAt: b.openedAt}
}

// Restore applies a previously captured Snapshot at cold start.
func (b *Breaker) Restore(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s.State
	b.consecutiveFailures = s.ConsecutiveFailures
	b.openedAt = s.OpenedAt
	b.consecutiveSuccess = 0
	b.probeHeld = false
}

func (b *Breaker) releaseProbe() {
	if b.probeHeld {
		b.halfOpenGate.Release(1)
		b.probeHeld = false
	}
}

func (b *Breaker) transitionTo(next State) {
	prev := b.state
	b.state = next
	switch next {
	case StateOpen:
		b.openedAt = b.clock.Now()
		b.consecutiveFailures = 0
	case StateHalfOpen:
		b.consecutiveSuccess = 0
	case StateClosed:
		b.consecutiveFailures = 0
		b.consecutiveSuccess = 0
	}
	if prev != next {
		b.logger.Info("circuit breaker transition", zap.Stringer("from", prev), zap.Stringer("to", next))
	}
}

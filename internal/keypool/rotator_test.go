package keypool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/clock"
	"github.com/cortexhub/llmgateway/internal/config"
	"github.com/cortexhub/llmgateway/internal/ratebudget"
)

func newKey(t *testing.T, index int, clk clock.Clock, perMinute float64) *Key {
	t.Helper()
	budget := config.EffectiveBudget{
		Limits: []config.LimitSpec{{Metric: config.MetricRequests, Window: config.WindowMinute, Limit: perMinute}},
	}
	return &Key{
		Credential: "k",
		Index:      index,
		Tracker:    ratebudget.New(budget, clk, zap.NewNop()),
	}
}

func TestRotator_KeyExhaustionTriggersRotation(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	k1 := newKey(t, 0, fc, 2)
	k2 := newKey(t, 1, fc, 2)
	r := New([]*Key{k1, k2}, fc, zap.NewNop())

	// Round-robin hands out K1, then K2; the cursor is back on K1.
	for i := 0; i < 2; i++ {
		k, ok := r.Next()
		require.True(t, ok)
		assert.Equal(t, i, k.Index)
		k.Tracker.Commit(ratebudget.Charge{Requests: 1})
		r.RecordSuccess(k)
	}
	// A second request on K1 brings it to its limit of 2 per minute.
	k1.Tracker.Commit(ratebudget.Charge{Requests: 1})

	k, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, 1, k.Index, "K1 exhausted, rotator should pick K2")
	k.Tracker.Commit(ratebudget.Charge{Requests: 1})
}

func TestRotator_ThreeConsecutiveFailuresDisableKey(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	k1 := newKey(t, 0, fc, 1000)
	k2 := newKey(t, 1, fc, 1000)
	r := New([]*Key{k1, k2}, fc, zap.NewNop())

	// Round-robin alternates K1 (failing) and K2 (succeeding); after the
	// loop the cursor is back on K1.
	for i := 0; i < 3; i++ {
		k, ok := r.Next()
		require.True(t, ok)
		require.Equal(t, 0, k.Index)
		r.RecordFailure(k)

		k, ok = r.Next()
		require.True(t, ok)
		require.Equal(t, 1, k.Index)
		r.RecordSuccess(k)
	}

	k, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, 1, k.Index, "K1 should be disabled after 3 consecutive failures")

	states := r.States()
	assert.False(t, states[0].Enabled)
}

func TestRotator_ReenablesAfterCooldown(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	k1 := newKey(t, 0, fc, 1000)
	r := New([]*Key{k1}, fc, zap.NewNop())

	for i := 0; i < 3; i++ {
		k, _ := r.Next()
		r.RecordFailure(k)
	}

	_, ok := r.Next()
	assert.False(t, ok, "sole key is disabled, rotator has nothing to offer")

	fc.Advance(defaultCooldown + time.Second)

	k, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, 0, k.ConsecutiveFailuresForTest())
}

func (k *Key) ConsecutiveFailuresForTest() int { return k.consecutiveFailures }

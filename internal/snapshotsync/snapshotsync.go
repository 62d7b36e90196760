// Package snapshotsync bridges the durable metrics snapshot of spec
// §6.3 to a live *registry.Registry: Restore applies a cold-start
// FileSnapshot onto each instance's breaker and key trackers, and
// Capture takes a fresh copy for SaveSnapshot to persist.
package snapshotsync

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/breaker"
	"github.com/cortexhub/llmgateway/internal/metrics"
	"github.com/cortexhub/llmgateway/internal/provider"
	"github.com/cortexhub/llmgateway/internal/registry"
)

func instanceKey(inst *provider.Instance) string {
	return fmt.Sprintf("%s::%s", inst.PublicModel(), inst.Name())
}

func keyKey(inst *provider.Instance, keyIndex int) string {
	return fmt.Sprintf("%s::%d", inst.Name(), keyIndex)
}

// Restore applies a previously loaded FileSnapshot onto every instance
// in reg. Instances or keys absent from the snapshot (new config, cold
// start) simply keep their freshly constructed state.
func Restore(reg *registry.Registry, snap metrics.FileSnapshot, logger *zap.Logger) {
	for _, inst := range reg.Instances() {
		if is, ok := snap.Instances[instanceKey(inst)]; ok {
			inst.Breaker().Restore(breaker.Snapshot{
				State:               circuitStateFromString(is.CircuitState),
				ConsecutiveFailures: is.ConsecutiveFailures,
				OpenedAt:            timeFromFloat(is.LastFailureAt),
			})
		}
		for _, key := range inst.Rotator().Keys() {
			if ks, ok := snap.Keys[keyKey(inst, key.Index)]; ok {
				key.Tracker.Restore(ks)
			}
		}
	}
	logger.Info("metrics snapshot restored", zap.Int("instances", len(snap.Instances)), zap.Int("keys", len(snap.Keys)))
}

// Capture builds a FileSnapshot from the current state of every
// instance in reg, ready for metrics.SaveSnapshot.
func Capture(reg *registry.Registry) metrics.FileSnapshot {
	snap := metrics.EmptySnapshot()
	for _, inst := range reg.Instances() {
		bsnap := inst.Breaker().Snapshot()
		snap.Instances[instanceKey(inst)] = metrics.InstanceSnapshot{
			ConsecutiveFailures: bsnap.ConsecutiveFailures,
			LastFailureAt:       metrics.FloatTimestamp(bsnap.OpenedAt),
			CircuitState:        bsnap.State.String(),
			AvgResponseSeconds:  inst.Window().Avg(),
			P95ResponseSeconds:  inst.Window().P95(),
		}
		for _, key := range inst.Rotator().Keys() {
			snap.Keys[keyKey(inst, key.Index)] = key.Tracker.Snapshot()
		}
	}
	return snap
}

// timeFromFloat inverts metrics.FloatTimestamp. A nil pointer (no
// recorded failure) yields the zero time, matching a fresh breaker's
// unset openedAt.
func timeFromFloat(v *float64) time.Time {
	if v == nil {
		return time.Time{}
	}
	sec := int64(*v)
	nsec := int64((*v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func circuitStateFromString(s string) breaker.State {
	switch s {
	case "open":
		return breaker.StateOpen
	case "half_open":
		return breaker.StateHalfOpen
	default:
		return breaker.StateClosed
	}
}

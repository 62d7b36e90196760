package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/ratebudget"
)

// InstanceSnapshot is the durable record for one Provider Instance,
// keyed "{model_id}::{instance_name}" in the snapshot file (spec §6.3).
type InstanceSnapshot struct {
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastFailureAt       *float64   `json:"last_failure_at"`
	CircuitState        string     `json:"circuit_state"`
	AvgResponseSeconds  float64    `json:"avg_response_seconds"`
	P95ResponseSeconds  float64    `json:"p95_response_seconds"`
}

// FileSnapshot is the complete on-disk structure written to
// metrics/provider_metrics.json.
type FileSnapshot struct {
	Instances map[string]InstanceSnapshot     `json:"instances"`
	Keys      map[string]ratebudget.Snapshot  `json:"keys"`
}

// EmptySnapshot returns a FileSnapshot with initialized, empty maps —
// what a cold start (missing or malformed file) produces.
func EmptySnapshot() FileSnapshot {
	return FileSnapshot{
		Instances: make(map[string]InstanceSnapshot),
		Keys:      make(map[string]ratebudget.Snapshot),
	}
}

// LoadSnapshot reads path and decodes a FileSnapshot. A missing file is
// a normal cold start (no error, empty snapshot, no log line). A
// malformed file is logged and treated as a cold start per spec §6.3 —
// this function never returns an error.
func LoadSnapshot(path string, logger *zap.Logger) FileSnapshot {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("metrics snapshot unreadable, cold starting", zap.String("path", path), zap.Error(err))
		}
		return EmptySnapshot()
	}

	var snap FileSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		logger.Warn("metrics snapshot malformed, cold starting", zap.String("path", path), zap.Error(err))
		return EmptySnapshot()
	}
	if snap.Instances == nil {
		snap.Instances = make(map[string]InstanceSnapshot)
	}
	if snap.Keys == nil {
		snap.Keys = make(map[string]ratebudget.Snapshot)
	}
	return snap
}

// SaveSnapshot serializes snap and writes it to path, via a temp file +
// rename so a crash mid-write never leaves a truncated snapshot behind
// (spec §5: "request path never blocks on it (use copy-then-serialize)"
// — callers build snap from a copy taken under their own locks before
// calling SaveSnapshot).
func SaveSnapshot(path string, snap FileSnapshot, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".provider_metrics-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	logger.Debug("metrics snapshot flushed",
		zap.String("path", path),
		zap.String("size", humanize.Bytes(uint64(len(raw)))),
		zap.Int("instances", len(snap.Instances)),
		zap.Int("keys", len(snap.Keys)))
	return nil
}

// FloatTimestamp converts a wall-clock time to the float|null form the
// snapshot schema uses for last_failure_at (Unix seconds with
// fractional precision), or nil for a zero time.
func FloatTimestamp(t time.Time) *float64 {
	if t.IsZero() {
		return nil
	}
	v := float64(t.UnixNano()) / 1e9
	return &v
}

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cortexhub/llmgateway/internal/config"
	"github.com/cortexhub/llmgateway/internal/ratebudget"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "provider_metrics.json")

	snap := EmptySnapshot()
	snap.Instances["gpt-4o::openai-primary"] = InstanceSnapshot{
		ConsecutiveFailures: 2,
		LastFailureAt:       FloatTimestamp(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		CircuitState:        "closed",
		AvgResponseSeconds:  0.42,
		P95ResponseSeconds:  0.9,
	}
	snap.Keys["openai-primary::0"] = ratebudget.Snapshot{
		Credits: map[config.Window]ratebudget.CreditSnapshot{
			config.WindowMinute: {Balance: 6, Boundary: time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)},
		},
	}

	require.NoError(t, SaveSnapshot(path, snap, logger))

	restored := LoadSnapshot(path, logger)
	assert.Equal(t, snap.Instances["gpt-4o::openai-primary"].ConsecutiveFailures,
		restored.Instances["gpt-4o::openai-primary"].ConsecutiveFailures)
	assert.Equal(t, 6.0, restored.Keys["openai-primary::0"].Credits[config.WindowMinute].Balance)
}

func TestLoadSnapshot_MissingFileIsColdStart(t *testing.T) {
	logger := zaptest.NewLogger(t)
	snap := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json"), logger)
	assert.Empty(t, snap.Instances)
	assert.Empty(t, snap.Keys)
}

func TestLoadSnapshot_MalformedFileIsColdStart(t *testing.T) {
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "provider_metrics.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	snap := LoadSnapshot(path, logger)
	assert.Empty(t, snap.Instances)
}

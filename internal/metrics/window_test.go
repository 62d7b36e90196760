package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow_AvgAndP95(t *testing.T) {
	w := NewWindow(5)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Add(v)
	}
	assert.InDelta(t, 3.0, w.Avg(), 0.0001)
	assert.Equal(t, 5.0, w.P95())
}

func TestWindow_EmptyIsZero(t *testing.T) {
	w := NewWindow(10)
	assert.Equal(t, 0.0, w.Avg())
	assert.Equal(t, 0.0, w.P95())
}

func TestWindow_EvictsOldestBeyondCapacity(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{10, 10, 10, 1, 1, 1} {
		w.Add(v)
	}
	// only the last 3 samples (1,1,1) should remain
	assert.InDelta(t, 1.0, w.Avg(), 0.0001)
}

func TestWindow_DefaultSize(t *testing.T) {
	w := NewWindow(0)
	assert.Len(t, w.samples, defaultWindowSize)
}

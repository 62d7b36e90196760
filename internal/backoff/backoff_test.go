package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelay_ExponentialGrowth(t *testing.T) {
	assert.Equal(t, 1*time.Second, Delay(0))
	assert.Equal(t, 2*time.Second, Delay(1))
	assert.Equal(t, 4*time.Second, Delay(2))
	assert.Equal(t, 8*time.Second, Delay(3))
}

func TestDelay_CapsAtMax(t *testing.T) {
	assert.Equal(t, 300*time.Second, Delay(20))
}

func TestDelay_Monotonic(t *testing.T) {
	prev := Delay(0)
	for attempt := 1; attempt <= 15; attempt++ {
		d := Delay(attempt)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

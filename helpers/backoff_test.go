package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	t.Parallel()

	b := Backoff{Min: 10 * time.Second, Max: 40 * time.Second, K: 2}
	assert.Equal(t, time.Duration(0), b.DelayBefore())
	assert.InDelta(t, float64(20*time.Second), float64(b.DelayAfter(false)), float64(time.Second))
	assert.InDelta(t, float64(40*time.Second), float64(b.DelayAfter(false)), float64(time.Second))
	assert.InDelta(t, float64(40*time.Second), float64(b.DelayAfter(false)), float64(time.Second))
	assert.InDelta(t, float64(10*time.Second), float64(b.DelayAfter(true)), float64(time.Second))
}

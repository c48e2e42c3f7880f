package autoconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsExponentiallyWithinJitterBounds(t *testing.T) {
	b := newBackoff()

	expected := backoffInitialDelay
	for i := 0; i < 6; i++ {
		d := b.next()
		lo := time.Duration(float64(expected) * (1 - backoffJitterRatio))
		hi := time.Duration(float64(expected) * (1 + backoffJitterRatio))
		assert.GreaterOrEqual(t, d, lo)
		assert.LessOrEqual(t, d, hi)

		expected *= backoffMultiplier
		if expected > backoffMaxDelay {
			expected = backoffMaxDelay
		}
	}
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	b := newBackoff()

	var last time.Duration
	for i := 0; i < 20; i++ {
		last = b.next()
	}

	hi := time.Duration(float64(backoffMaxDelay) * (1 + backoffJitterRatio))
	assert.LessOrEqual(t, last, hi)
}

func TestBackoffResetRestoresInitialDelay(t *testing.T) {
	b := newBackoff()

	for i := 0; i < 5; i++ {
		b.next()
	}
	b.reset()

	d := b.next()
	lo := time.Duration(float64(backoffInitialDelay) * (1 - backoffJitterRatio))
	hi := time.Duration(float64(backoffInitialDelay) * (1 + backoffJitterRatio))
	assert.GreaterOrEqual(t, d, lo)
	assert.LessOrEqual(t, d, hi)
}

func TestBackoffSetNextDelayOverridesOnce(t *testing.T) {
	b := newBackoff()

	b.setNextDelay(7 * time.Second)
	assert.Equal(t, 7*time.Second, b.next())

	// The override is one-shot: the following call resumes normal growth.
	d := b.next()
	lo := time.Duration(float64(backoffInitialDelay) * (1 - backoffJitterRatio))
	hi := time.Duration(float64(backoffInitialDelay) * (1 + backoffJitterRatio))
	assert.GreaterOrEqual(t, d, lo)
	assert.LessOrEqual(t, d, hi)
}

func TestJitterNeverGoesNegative(t *testing.T) {
	b := newBackoff()
	d := jitter(1, b.rand)
	assert.GreaterOrEqual(t, d, time.Duration(0))
}

func TestJitterOfZeroIsZero(t *testing.T) {
	b := newBackoff()
	assert.Equal(t, time.Duration(0), jitter(0, b.rand))
}

package ipc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	assert.Equal(t, backoffBase, backoffDelay(1))
	assert.Equal(t, 2*backoffBase, backoffDelay(2))
	assert.Equal(t, 4*backoffBase, backoffDelay(3))
	assert.Equal(t, backoffMax, backoffDelay(10))
}

func TestJitterStaysWithinFraction(t *testing.T) {
	base := 10 * time.Second
	for i := 0; i < 50; i++ {
		d := jitter(base)
		assert.GreaterOrEqual(t, d, time.Duration(float64(base)*0.8))
		assert.LessOrEqual(t, d, time.Duration(float64(base)*1.2))
	}
}

func TestTrimTrailingNewline(t *testing.T) {
	assert.Equal(t, "hello", trimTrailingNewline("hello\n"))
	assert.Equal(t, "hello", trimTrailingNewline("hello\r\n"))
	assert.Equal(t, "", trimTrailingNewline("\n"))
	assert.Equal(t, "no newline", trimTrailingNewline("no newline"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
}

package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJitteredStaysWithinBounds(t *testing.T) {
	p := NewPacingCalculator()
	base := 300 * time.Second

	for i := 0; i < 500; i++ {
		d := p.Jittered(base)
		assert.GreaterOrEqual(t, d, 240*time.Second)
		assert.LessOrEqual(t, d, 360*time.Second)
	}
}

func TestJitteredZeroBase(t *testing.T) {
	p := NewPacingCalculator()
	assert.Equal(t, time.Duration(0), p.Jittered(0))
	assert.Equal(t, time.Duration(0), p.Jittered(-time.Second))
}

func TestNextSendTimeNeverBeforeLast(t *testing.T) {
	p := NewPacingCalculator()
	last := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 500; i++ {
		next := p.NextSendTime(last, 300)
		assert.False(t, next.Before(last))
		assert.GreaterOrEqual(t, next.Sub(last), 240*time.Second)
		assert.LessOrEqual(t, next.Sub(last), 360*time.Second)
	}
}

func TestNextSendTimeZeroDelay(t *testing.T) {
	p := NewPacingCalculator()
	last := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, last, p.NextSendTime(last, 0))
}

func TestHandoffDelayRange(t *testing.T) {
	p := NewPacingCalculator()

	for i := 0; i < 500; i++ {
		d := p.HandoffDelay(15 * time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 15*time.Second)
	}

	assert.Equal(t, time.Duration(0), p.HandoffDelay(0))
}

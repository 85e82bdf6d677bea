package dispatch

import (
	"math/rand"
	"sync"
	"time"
)

// PacingCalculator computes jittered send slots. Delays are drawn uniformly
// from [0.8*base, 1.2*base] so intervals never look mechanically periodic.
type PacingCalculator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewPacingCalculator() *PacingCalculator {
	return &PacingCalculator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NextSendTime returns lastTime plus a jittered base delay. The result is
// never before lastTime.
func (p *PacingCalculator) NextSendTime(lastTime time.Time, baseDelaySeconds int) time.Time {
	if baseDelaySeconds <= 0 {
		return lastTime
	}
	return lastTime.Add(p.Jittered(time.Duration(baseDelaySeconds) * time.Second))
}

// Jittered draws a delay uniformly from [0.8*base, 1.2*base]
func (p *PacingCalculator) Jittered(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	p.mu.Lock()
	f := 0.8 + 0.4*p.rng.Float64()
	p.mu.Unlock()
	return time.Duration(float64(base) * f)
}

// HandoffDelay draws a uniform delay in [0, max) used to decouple the
// reservation tick from the transmission instant.
func (p *PacingCalculator) HandoffDelay(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	p.mu.Lock()
	d := time.Duration(p.rng.Int63n(int64(max)))
	p.mu.Unlock()
	return d
}

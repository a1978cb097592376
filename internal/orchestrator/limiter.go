package orchestrator

import (
	"sync"
	"time"
)

// Limiter enforces the cycle cadence: a minimum interval between cycle
// starts and a sliding-window hourly cap. When the cap is reached Delay
// reports how long to sleep until capacity frees; it never errors.
type Limiter struct {
	maxPerHour  int
	minInterval time.Duration
	now         func() time.Time

	mu     sync.Mutex
	starts []time.Time
	last   time.Time
}

func NewLimiter(maxPerHour int, minInterval time.Duration) *Limiter {
	return &Limiter{
		maxPerHour:  maxPerHour,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Delay returns how long the caller must wait before starting the next
// cycle. Zero means go now.
func (l *Limiter) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	var delay time.Duration
	if !l.last.IsZero() {
		if d := l.last.Add(l.minInterval).Sub(now); d > delay {
			delay = d
		}
	}
	if l.maxPerHour > 0 && len(l.starts) >= l.maxPerHour {
		// Wait until enough old starts age out of the window.
		gate := l.starts[len(l.starts)-l.maxPerHour]
		if d := gate.Add(time.Hour).Sub(now); d > delay {
			delay = d
		}
	}
	return delay
}

// Record marks a cycle start.
func (l *Limiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.pruneLocked(now)
	l.starts = append(l.starts, now)
	l.last = now
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-time.Hour)
	i := 0
	for i < len(l.starts) && l.starts[i].Before(cutoff) {
		i++
	}
	l.starts = l.starts[i:]
}

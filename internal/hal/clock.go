package hal

import (
	"sync"
	"time"
)

// Clock is the kernel's monotonic time base, measured from boot.
type Clock interface {
	Now() time.Duration
}

// Monotonic reads the host's monotonic clock.
type Monotonic struct {
	boot time.Time
}

// NewMonotonic creates a clock whose zero is the moment of the call.
func NewMonotonic() *Monotonic {
	return &Monotonic{boot: time.Now()}
}

// Now returns the time elapsed since boot.
func (m *Monotonic) Now() time.Duration {
	return time.Since(m.boot)
}

// ManualClock only moves when told to. Used for simulation and tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

// NewManualClock creates a clock stopped at zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Now returns the current simulated time.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
// Negative values are ignored; the clock never regresses.
func (c *ManualClock) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now += d
	}
	return c.now
}

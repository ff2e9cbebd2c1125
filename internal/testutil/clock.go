package testutil

import (
	"sync"
	"time"

	"github.com/agentstation/utc"
)

// DefaultTime is the instant a FixedClock starts at when none is given.
var DefaultTime = time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC)

// FixedClock is a manually advanced clock for deterministic audit stamps.
//
// Unlike the system clock, FixedClock only moves when Advance or Set is
// called, so the same scenario always produces the same InstanceEdit.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at t. A zero t means DefaultTime.
func NewFixedClock(t time.Time) *FixedClock {
	if t.IsZero() {
		t = DefaultTime
	}
	return &FixedClock{now: t.UTC()}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() utc.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return utc.Time{Time: c.now}
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

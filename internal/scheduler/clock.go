package scheduler

import (
	"sync"
	"time"
)

// Clock supplies the session time used to admit emergencies and progress
// service. Times are offsets from the session start.
type Clock interface {
	Now() time.Duration
}

// LogicalClock only moves when told to and never moves backwards.
type LogicalClock struct {
	mu  sync.Mutex
	now time.Duration
}

func NewLogicalClock() *LogicalClock { return &LogicalClock{} }

func (c *LogicalClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AdvanceTo moves the clock to t if t is later than the current time.
func (c *LogicalClock) AdvanceTo(t time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t > c.now {
		c.now = t
	}
}

// Advance moves the clock forward by d.
func (c *LogicalClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// WallClock measures real time since it was created.
type WallClock struct {
	start time.Time
}

func NewWallClock() *WallClock { return &WallClock{start: time.Now()} }

func (c *WallClock) Now() time.Duration { return time.Since(c.start) }

// advancer is implemented by clocks a snapshot's clockMs may drive.
type advancer interface {
	AdvanceTo(time.Duration)
}

// Package clock provides the time source of the relay. Lock periods and undo
// windows are compared against Clock.Now, never against operation timeouts,
// so tests drive time explicitly through a Manual clock.
package clock

import (
	"sync"
	"time"

	"github.com/rony4d/go-ethrelay/inter"
)

// Clock returns the current relay time.
type Clock interface {
	Now() inter.Timestamp
}

// System reads the wall clock.
type System struct{}

func (System) Now() inter.Timestamp {
	return inter.FromTime(time.Now())
}

// Manual is a clock that only moves when told to. Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now inter.Timestamp
}

// NewManual creates a manual clock set to start.
func NewManual(start inter.Timestamp) *Manual {
	return &Manual{now: start}
}

func (c *Manual) Now() inter.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Manual) Advance(d time.Duration) inter.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += inter.Timestamp(d)
	return c.now
}

// Set moves the clock to t. Moving backwards is ignored, the relay clock
// is monotonic.
func (c *Manual) Set(t inter.Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t > c.now {
		c.now = t
	}
}

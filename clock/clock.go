package clock

import (
	"sync"
	"time"
)

/*
The clock package supplies the source of "now" for everything time dependent
in the log: commit timestamps, tombstone expiry and log retention. Core logic
never calls time.Now directly; it is handed a Clock. Tests use a ManualClock
and advance it explicitly.
*/

////////////////////////////////////////////////////////////////////////////////

// Clock is a source of the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystemClock returns a clock backed by the system time.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	now time.Time
	mtx *sync.Mutex
}

// NewManualClock returns a manual clock set to start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{
		now: start,
		mtx: &sync.Mutex{},
	}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t. Moving backwards is permitted.
func (c *ManualClock) Set(t time.Time) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = t
}

// Millis returns t as unix milliseconds, the unit used in log actions.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts unix milliseconds to a time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

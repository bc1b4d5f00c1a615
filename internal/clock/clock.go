// Package clock accumulates game time across start, pause and period boundaries.
//
// Elapsed time is derived from the wall clock on every query, never cached,
// so a suspended process still reports the right value when it resumes.
package clock

import "time"

// State of the game clock
type State string

const (
	Stopped State = "stopped"
	Running State = "running"
)

// Now is a source of wall-clock time
type Now func() time.Time

// Clock tracks the current period and its elapsed running time.
// It is not safe for concurrent use.
type Clock struct {
	now           Now
	period        int
	startedAt     time.Time // zero iff stopped
	periodElapsed time.Duration
}

// New returns a stopped clock at period 1. A nil now uses time.Now.
func New(now Now) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now, period: 1}
}

// State reports whether the clock is advancing
func (c *Clock) State() State {
	if c.startedAt.IsZero() {
		return Stopped
	}
	return Running
}

// Running is shorthand for State() == Running
func (c *Clock) Running() bool {
	return !c.startedAt.IsZero()
}

// StartedAt returns the instant the current running interval began
func (c *Clock) StartedAt() (time.Time, bool) {
	return c.startedAt, !c.startedAt.IsZero()
}

// Period returns the current period, starting at 1
func (c *Clock) Period() int {
	return c.period
}

// Start begins a running interval. It reports false when already running.
func (c *Clock) Start() bool {
	if c.Running() {
		return false
	}
	c.startedAt = c.now()
	return true
}

// Pause closes the running interval and returns its length.
// A stopped clock returns zero.
func (c *Clock) Pause() time.Duration {
	if !c.Running() {
		return 0
	}
	delta := c.since(c.now())
	c.periodElapsed += delta
	c.startedAt = time.Time{}
	return delta
}

// Lap closes the running interval and immediately opens a new one at the
// same instant, returning the closed length. A stopped clock returns zero.
func (c *Clock) Lap() time.Duration {
	if !c.Running() {
		return 0
	}
	now := c.now()
	delta := c.since(now)
	c.periodElapsed += delta
	c.startedAt = now
	return delta
}

// AdvancePeriod pauses if needed, moves to the next period and resets the
// period's elapsed time. It returns the interval closed by the implicit pause.
func (c *Clock) AdvancePeriod() time.Duration {
	delta := c.Pause()
	c.period++
	c.periodElapsed = 0
	return delta
}

// Elapsed is the time played in the current period, including the open interval
func (c *Clock) Elapsed() time.Duration {
	if !c.Running() {
		return c.periodElapsed
	}
	return c.periodElapsed + c.since(c.now())
}

// since never goes negative, even if the wall clock steps backwards
func (c *Clock) since(now time.Time) time.Duration {
	d := now.Sub(c.startedAt)
	if d < 0 {
		return 0
	}
	return d
}

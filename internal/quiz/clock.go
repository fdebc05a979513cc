package quiz

import "time"

// Clock accumulates running time across pauses.
type Clock struct {
	Accumulated time.Duration
	Anchor      time.Time
	Running     bool
}

// Start begins or resumes timing at now. It is a no-op while running.
func (c *Clock) Start(now time.Time) {
	if c.Running {
		return
	}
	c.Anchor = now
	c.Running = true
}

// Pause stops timing and folds the running interval into the total.
func (c *Clock) Pause(now time.Time) {
	if !c.Running {
		return
	}
	if d := now.Sub(c.Anchor); d > 0 {
		c.Accumulated += d
	}
	c.Running = false
}

// Total returns the accumulated time, including the current interval.
func (c Clock) Total(now time.Time) time.Duration {
	total := c.Accumulated
	if c.Running {
		if d := now.Sub(c.Anchor); d > 0 {
			total += d
		}
	}
	return total
}

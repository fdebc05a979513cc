package quiz

import (
	"testing"
	"time"
)

func TestClockExcludesPauses(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var c Clock
	c.Start(t0)
	c.Start(t0.Add(5 * time.Second))
	c.Pause(t0.Add(30 * time.Second))
	if got := c.Total(t0.Add(10 * time.Minute)); got != 30*time.Second {
		t.Fatalf("paused total = %v", got)
	}
	c.Pause(t0.Add(11 * time.Minute))
	c.Start(t0.Add(20 * time.Minute))
	if got := c.Total(t0.Add(20*time.Minute + 15*time.Second)); got != 45*time.Second {
		t.Fatalf("running total = %v", got)
	}
}

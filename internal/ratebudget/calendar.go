package ratebudget

import (
	"time"

	"github.com/cortexhub/llmgateway/internal/config"
)

// calendarWindow is a capped token bucket that refills exactly at UTC
// period boundaries (spec §4.1.2): balance := min(balance+gain, max) at
// every boundary crossed since the last observation.
type calendarWindow struct {
	window  config.Window
	gain    float64
	max     float64
	balance float64

	// boundary is the UTC instant of the last period boundary this
	// window has accounted for; advance walks forward one boundary at
	// a time from here.
	boundary time.Time
}

func newCalendarWindow(window config.Window, gain, max float64, now time.Time) *calendarWindow {
	return &calendarWindow{
		window:   window,
		gain:     gain,
		max:      max,
		balance:  max,
		boundary: truncateToBoundary(window, now),
	}
}

// advance steps the bucket forward through every period boundary between
// its last observation and now, refilling once per boundary crossed.
// Advancing from T to T' yields the same balance as advancing through
// any intermediate T'' (calendar refill idempotence, spec §8): each call
// only ever walks forward from the stored boundary, never re-applies a
// boundary already accounted for.
func (c *calendarWindow) advance(now time.Time) {
	next := nextBoundary(c.window, c.boundary)
	for !next.After(now) {
		c.balance += c.gain
		if c.balance > c.max {
			c.balance = c.max
		}
		c.boundary = next
		next = nextBoundary(c.window, c.boundary)
	}
}

// secondsToRefill reports how long until the next boundary, for a
// denial's retry_after_seconds.
func (c *calendarWindow) secondsToRefill(now time.Time) float64 {
	next := nextBoundary(c.window, c.boundary)
	if next.Before(now) {
		return 0
	}
	return next.Sub(now).Seconds()
}

func truncateToBoundary(window config.Window, t time.Time) time.Time {
	t = t.UTC()
	switch window {
	case config.WindowMinute:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	case config.WindowHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case config.WindowDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case config.WindowMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

func nextBoundary(window config.Window, boundary time.Time) time.Time {
	switch window {
	case config.WindowMinute:
		return boundary.Add(time.Minute)
	case config.WindowHour:
		return boundary.Add(time.Hour)
	case config.WindowDay:
		return boundary.AddDate(0, 0, 1)
	case config.WindowMonth:
		return boundary.AddDate(0, 1, 0)
	default:
		return boundary
	}
}

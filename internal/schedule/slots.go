package schedule

import (
	"iter"
	"time"
)

// Slots yields start, start+g, start+2g, ... while < end. Instants before
// now are skipped; a zero now disables that filter. The sequence is lazy and
// can be ranged over any number of times.
func Slots(start, end time.Time, granularity time.Duration, now time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if granularity <= 0 {
			return
		}
		for t := start; t.Before(end); t = t.Add(granularity) {
			if !now.IsZero() && t.Before(now) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// DaySlots is Slots over w's window for date's calendar day.
func (w Window) DaySlots(date time.Time, granularity time.Duration, now time.Time) iter.Seq[time.Time] {
	start, end, ok := w.DayWindow(date)
	if !ok {
		return func(func(time.Time) bool) {}
	}
	return Slots(start, end, granularity, now)
}

// IsSlot reports whether at is one of the instants DaySlots would yield for
// at's calendar day: inside the window, on the granularity grid counted from
// the window's opening time, and not before now. at must already be in the
// location the window is expressed in.
func (w Window) IsSlot(at time.Time, granularity time.Duration, now time.Time) bool {
	if granularity <= 0 {
		return false
	}
	start, end, ok := w.DayWindow(at)
	if !ok || at.Before(start) || !at.Before(end) {
		return false
	}
	if !now.IsZero() && at.Before(now) {
		return false
	}
	return at.Sub(start)%granularity == 0
}

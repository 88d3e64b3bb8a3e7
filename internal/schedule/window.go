// Package schedule turns a professional's recurring weekly availability into
// concrete candidate slot instants. Everything here is pure: no I/O, no clock.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidWindow = errors.New("invalid availability window")

// TimeOfDay is a wall-clock offset from local midnight.
type TimeOfDay time.Duration

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second)
}

// ParseTimeOfDay accepts "15:04" and "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	layout := "15:04:05"
	if strings.Count(s, ":") == 1 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
}

func (t TimeOfDay) Clock() (hour, minute, second int) {
	d := time.Duration(t)
	hour = int(d / time.Hour)
	minute = int(d % time.Hour / time.Minute)
	second = int(d % time.Minute / time.Second)
	return hour, minute, second
}

// On returns the instant at this wall-clock time on day's calendar date, in
// day's location. Built from date components so DST shifts are respected.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	h, mi, s := t.Clock()
	return time.Date(y, m, d, h, mi, s, 0, day.Location())
}

func (t TimeOfDay) String() string {
	h, m, s := t.Clock()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Window is a contiguous recurring availability: every weekday on the
// circular path FromWeekday..ToWeekday, between FromTime and ToTime.
type Window struct {
	FromWeekday time.Weekday
	ToWeekday   time.Weekday
	FromTime    TimeOfDay
	ToTime      TimeOfDay
}

// IsWeekdayInRange reports whether day lies on the inclusive path from
// `from` to `to`, walking forward through Sunday..Saturday and wrapping
// when to < from.
func IsWeekdayInRange(day, from, to time.Weekday) bool {
	if from <= to {
		return from <= day && day <= to
	}
	return day >= from || day <= to
}

func validWeekday(d time.Weekday) bool {
	return d >= time.Sunday && d <= time.Saturday
}

func (w Window) Validate() error {
	if !validWeekday(w.FromWeekday) || !validWeekday(w.ToWeekday) {
		return fmt.Errorf("%w: weekdays %d..%d out of range", ErrInvalidWindow, w.FromWeekday, w.ToWeekday)
	}
	if w.FromTime < 0 || w.ToTime > TimeOfDay(24*time.Hour) {
		return fmt.Errorf("%w: times %s..%s out of range", ErrInvalidWindow, w.FromTime, w.ToTime)
	}
	if w.FromTime >= w.ToTime {
		return fmt.Errorf("%w: from %s is not before to %s", ErrInvalidWindow, w.FromTime, w.ToTime)
	}
	return nil
}

// Covers reports whether the window is open on date's weekday.
func (w Window) Covers(date time.Time) bool {
	return IsWeekdayInRange(date.Weekday(), w.FromWeekday, w.ToWeekday)
}

// DayWindow returns the open interval of date's calendar day, in date's
// location. ok is false when the weekday is outside the window or the window
// is degenerate.
func (w Window) DayWindow(date time.Time) (start, end time.Time, ok bool) {
	if w.Validate() != nil || !w.Covers(date) {
		return time.Time{}, time.Time{}, false
	}
	return w.FromTime.On(date), w.ToTime.On(date), true
}

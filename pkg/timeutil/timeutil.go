// Package timeutil provides timezone and study-date utilities for Seoul time
// (UTC+9). Review due dates are calendar dates, not instants: a card due
// "today" is due from midnight Seoul time, so every comparison in the engine
// goes through DateOf. No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// SeoulTZ is the Seoul timezone (UTC+9, no DST).
// South Korea has not observed DST since 1988, so this is constant year-round.
var SeoulTZ = time.FixedZone("Asia/Seoul", 9*60*60)

// NoDueDate is the sentinel for "never scheduled". It sorts before any real
// due date, which the remind query relies on instead of engine-specific NULL
// ordering.
var NoDueDate = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// Now returns the current time in Seoul timezone.
func Now() time.Time {
	return time.Now().In(SeoulTZ)
}

// ToSeoul converts a time to Seoul timezone.
func ToSeoul(t time.Time) time.Time {
	return t.In(SeoulTZ)
}

// Date creates a date (midnight) in Seoul timezone.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, SeoulTZ)
}

// DateOf truncates a time to its Seoul calendar date (midnight).
func DateOf(t time.Time) time.Time {
	s := ToSeoul(t)
	return time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, SeoulTZ)
}

// Today returns today's Seoul calendar date.
func Today() time.Time {
	return DateOf(time.Now())
}

// AddDays returns the date n days after t, keeping the Seoul date boundary.
func AddDays(t time.Time, n int) time.Time {
	return DateOf(t).AddDate(0, 0, n)
}

// SameDate reports whether a and b fall on the same Seoul calendar date.
func SameDate(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// IsDue reports whether a due date is on or before the given date.
// The NoDueDate sentinel is never due: an unscheduled row is eligible through
// the new-item path, not the due-review path.
func IsDue(due, today time.Time) bool {
	if !HasDueDate(due) {
		return false
	}
	return !DateOf(due).After(DateOf(today))
}

// HasDueDate reports whether due is a real scheduled date.
func HasDueDate(due time.Time) bool {
	return !due.IsZero() && !SameDate(due, NoDueDate)
}

// DueSortKey returns a key that orders unset due dates before any real date.
func DueSortKey(due time.Time) time.Time {
	if !HasDueDate(due) {
		return NoDueDate
	}
	return DateOf(due)
}

// WindowStart returns the instant `days` days before t, used for the
// trailing remind-window lookback over study-log timestamps.
func WindowStart(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, -days)
}

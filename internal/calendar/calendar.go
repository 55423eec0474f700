// Package calendar holds the date arithmetic behind recurring schedules and
// goal metrics. Everything operates on core.Date values, which are calendar
// dates pinned to midnight UTC, so results never depend on the host zone.
package calendar

import (
	"time"

	"finledger/internal/core"
)

// Clock supplies the current instant. Services take a Clock so tests can pin
// "today".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Today is the calendar date of c.Now() in the clock's own location.
func Today(c Clock) core.Date {
	return core.DateOf(c.Now())
}

// LastDayOfMonth returns the number of days in the given month.
func LastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay builds year-month-day, pulling day back to the month's last day
// when the month is shorter. month may overflow; it is normalised first.
func ClampDay(year int, month time.Month, day int) core.Date {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	y, m := first.Year(), first.Month()
	day = min(day, LastDayOfMonth(y, m))
	return core.NewDate(y, int(m), day)
}

// AddMonths moves d by n calendar months keeping the day of month, clamped
// to the target month's length. time.AddDate would roll Jan 31 + 1 month
// over into March.
func AddMonths(d core.Date, n int) core.Date {
	y, m, day := d.Date()
	return ClampDay(y, m+time.Month(n), day)
}

// AddYears moves d by n years. Feb 29 lands on Feb 28 in common years.
func AddYears(d core.Date, n int) core.Date {
	y, m, day := d.Date()
	return ClampDay(y+n, m, day)
}

// MonthsBetween counts calendar-month boundaries from from to to, ignoring
// the day of month. It is negative when to is in an earlier month.
func MonthsBetween(from, to core.Date) int {
	return (to.Year()*12 + int(to.Month())) - (from.Year()*12 + int(from.Month()))
}

// DaysBetween returns the whole days from from to to.
func DaysBetween(from, to core.Date) int {
	return int(to.Sub(from.Time).Hours() / 24)
}

// Max returns the later of two dates.
func Max(a, b core.Date) core.Date {
	if a.After(b) {
		return a
	}
	return b
}

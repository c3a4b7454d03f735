// Package calendar is the date/weekday/day-of-year source the core queries
// (spec §6 "Calendar"): "is today a weekday?" and "what day of year is
// this?", plus the yearly triggers C6 (Population Dynamics) fires on.
//
// Grounded on original_source/src/Date.cc's proleptic-Gregorian, 0-based
// simulation-day counting; expressed here with stdlib time.Time instead of
// the source's custom Julian-day arithmetic.
package calendar

import "time"

// Calendar maps a 0-based simulation day to a calendar date, starting from
// a configured epoch.
type Calendar struct {
	epoch time.Time
}

// New creates a Calendar rooted at the given epoch (simulation day 0).
func New(epoch time.Time) *Calendar {
	return &Calendar{epoch: epoch.Truncate(24 * time.Hour)}
}

// Date returns the calendar date for the given simulation day.
func (c *Calendar) Date(day int) time.Time {
	return c.epoch.AddDate(0, 0, day)
}

// IsWeekday reports whether the given simulation day falls on Monday
// through Friday.
func (c *Calendar) IsWeekday(day int) bool {
	switch c.Date(day).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// IsWeekend is the complement of IsWeekday.
func (c *Calendar) IsWeekend(day int) bool {
	return !c.IsWeekday(day)
}

// DayOfYear returns the 1-based day of year (1-366) for the given
// simulation day, used by the seasonality lookup (spec §4.5).
func (c *Calendar) DayOfYear(day int) int {
	return c.Date(day).YearDay()
}

// Year returns the calendar year of the given simulation day.
func (c *Calendar) Year(day int) int {
	return c.Date(day).Year()
}

// IsSchoolYearEnd reports whether the given simulation day is July 31 —
// the day C6 unenrolls every student from their school (spec §4.6).
func (c *Calendar) IsSchoolYearEnd(day int) bool {
	d := c.Date(day)
	return d.Month() == time.July && d.Day() == 31
}

// IsAgeUpDay reports whether the given simulation day is August 1 — the
// day C6 re-evaluates every agent's profile by age (spec §4.6).
func (c *Calendar) IsAgeUpDay(day int) bool {
	d := c.Date(day)
	return d.Month() == time.August && d.Day() == 1
}

// DaysBetween returns the number of simulation days between two dates,
// useful for turning a "discharge date" into a day offset.
func (c *Calendar) DaysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

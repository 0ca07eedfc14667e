package calendar

import (
	"time"

	"github.com/wonny/feedwatch/internal/contracts"
)

// Calendar resolves weekend/holiday exemptions and arrival deadlines.
// All date arithmetic happens in one configured timezone so that feeds
// observed across timezones cannot drift off by a day.
// Read-only after construction, safe for concurrent use.
type Calendar struct {
	holidays  map[string]bool // keyed by DateKey in loc
	loc       *time.Location
	startHour int // business-hours window start, used for COB rollover
	startMin  int
}

// New creates a calendar from validated inputs. Holiday strings must be
// YYYY-MM-DD; the registry validates them before construction.
func New(holidays []string, loc *time.Location, businessStartHour, businessStartMinute int) *Calendar {
	set := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		set[h] = true
	}
	return &Calendar{
		holidays:  set,
		loc:       loc,
		startHour: businessStartHour,
		startMin:  businessStartMinute,
	}
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsHoliday reports whether the date is a declared holiday.
func (c *Calendar) IsHoliday(date time.Time) bool {
	return c.holidays[contracts.DateKey(date.In(c.loc))]
}

// IsWeekend reports whether the date falls on Saturday or Sunday in the
// calendar's timezone.
func (c *Calendar) IsWeekend(date time.Time) bool {
	switch date.In(c.loc).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

// IsExpectedDay reports whether data is expected for the feed on the date.
// A date is expected unless it is a declared holiday, or it is a weekend
// and the feed does not publish on weekends.
func (c *Calendar) IsExpectedDay(feed *contracts.FeedDefinition, date time.Time) bool {
	if c.IsHoliday(date) {
		return false
	}
	if c.IsWeekend(date) && !feed.WeekendExpected {
		return false
	}
	return true
}

// Deadline returns the moment after which an absent feed counts as late:
// cob_date + expected_time + tolerance, in the calendar's timezone.
func (c *Calendar) Deadline(feed *contracts.FeedDefinition, cobDate time.Time) time.Time {
	hour, minute := feed.ExpectedClock()
	d := cobDate.In(c.loc)
	expected := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, c.loc)
	return expected.Add(feed.Tolerance)
}

// CurrentCOBDate returns the business date "now" belongs to. Before the
// business-hours window opens, the previous day is still being closed out,
// so its date is returned.
func (c *Calendar) CurrentCOBDate(now time.Time) time.Time {
	local := now.In(c.loc)
	opening := time.Date(local.Year(), local.Month(), local.Day(), c.startHour, c.startMin, 0, 0, c.loc)
	if local.Before(opening) {
		local = local.AddDate(0, 0, -1)
	}
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// Day truncates a timestamp to its calendar date in the configured timezone.
func (c *Calendar) Day(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

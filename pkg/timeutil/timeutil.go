// Package timeutil provides calendar helpers bound to the club's timezone.
// A game belongs to the calendar day on which it was played locally, so
// "today" and "this month" must be computed in that zone, not in UTC.
package timeutil

import (
	"fmt"
	"time"
)

// DateLayout is the YYYY-MM-DD layout used for game dates.
const DateLayout = "2006-01-02"

// tokyo is the fallback zone when the tz database is unavailable.
// Japan has no DST, so a fixed offset is exact.
var tokyo = time.FixedZone("Asia/Tokyo", 9*60*60)

// Clock reports the current time in a fixed location.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// LoadLocation resolves a tz name. "Asia/Tokyo" always resolves, even on
// hosts without zoneinfo.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return tokyo, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if name == "Asia/Tokyo" {
			return tokyo, nil
		}
		return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// NewClock creates a Clock in loc. A nil loc means Asia/Tokyo.
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = tokyo
	}
	return Clock{loc: loc, now: time.Now}
}

// FixedClock returns a Clock that always reports t. Used in tests.
func FixedClock(t time.Time, loc *time.Location) Clock {
	c := NewClock(loc)
	c.now = func() time.Time { return t }
	return c
}

// Location returns the clock's location.
func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return tokyo
	}
	return c.loc
}

// Now returns the current time in the clock's location.
func (c Clock) Now() time.Time {
	now := c.now
	if now == nil {
		now = time.Now
	}
	return now().In(c.Location())
}

// Today returns the local calendar day as YYYY-MM-DD.
func (c Clock) Today() string {
	return c.Now().Format(DateLayout)
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns midnight of the first day of t's month in t's location.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// MonthStartDate returns the first day of t's month in loc as YYYY-MM-DD.
func MonthStartDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return StartOfMonth(t).Format(DateLayout)
}

// ParseDate parses YYYY-MM-DD as midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = tokyo
	}
	return time.ParseInLocation(DateLayout, value, loc)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	a = StartOfDay(a)
	b = StartOfDay(b.In(a.Location()))
	return int(b.Sub(a).Hours() / 24)
}

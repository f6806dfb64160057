package core

import (
	"errors"
	"fmt"
	"time"
)

const dateKeyLayout = "2006-01-02"

// DateKey is a YYYY-MM-DD calendar day. Keys sort lexicographically in
// calendar order.
type DateKey string

var ErrInvalidDateKey = errors.New("invalid date key")

// Calendar maps instants to DateKeys by truncating them to the calendar day
// of a single configured location. Logging, display and calendar lookups
// must all go through the same Calendar.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar returns a Calendar for loc. A nil loc means time.Local.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc, now: time.Now}
}

// WithClock returns a copy of c that reads the current time from now.
func (c Calendar) WithClock(now func() time.Time) Calendar {
	c.now = now
	return c
}

func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// Key returns the local calendar day of t.
func (c Calendar) Key(t time.Time) DateKey {
	return DateKey(t.In(c.Location()).Format(dateKeyLayout))
}

func (c Calendar) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

func (c Calendar) Today() DateKey { return c.Key(c.Now()) }

// ParseDateKey validates s as a real calendar day in YYYY-MM-DD form.
func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse(dateKeyLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDateKey, s)
	}
	return DateKey(t.Format(dateKeyLayout)), nil
}

// NewDateKey builds a key from calendar components, normalizing overflow
// (e.g. day 32) the way time.Date does.
func NewDateKey(year int, month time.Month, day int) DateKey {
	return DateKey(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(dateKeyLayout))
}

func (k DateKey) String() string { return string(k) }

func (k DateKey) Valid() bool {
	_, err := ParseDateKey(string(k))
	return err == nil
}

func (k DateKey) parts() (int, time.Month, int) {
	t, err := time.Parse(dateKeyLayout, string(k))
	if err != nil {
		return 0, 0, 0
	}
	return t.Date()
}

// Date returns the year, month and day of the key.
func (k DateKey) Date() (year int, month time.Month, day int) { return k.parts() }

// Time returns local midnight of the day in loc.
func (k DateKey) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := k.parts()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// AddDays shifts the key by n calendar days. Arithmetic happens on the
// calendar, so DST transitions never skip or repeat a day.
func (k DateKey) AddDays(n int) DateKey {
	y, m, d := k.parts()
	return NewDateKey(y, m, d+n)
}

// MonthKeys returns every day of the given month in order.
func MonthKeys(year int, month time.Month) []DateKey {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()
	keys := make([]DateKey, 0, days)
	for d := 1; d <= days; d++ {
		keys = append(keys, NewDateKey(year, month, d))
	}
	return keys
}

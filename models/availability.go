package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Entry type discriminators for AvailabilityEntry.
const (
	EntryTypeWeekly = "wady"
	EntryTypeDate   = "date"
)

// DayKeyLayout is the canonical day-granularity key for date overrides.
const DayKeyLayout = "2006-01-02"

// Weekday is a lowercase day-of-week name ("sunday".."saturday").
type Weekday string

const (
	Sunday    Weekday = "sunday"
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
)

// Weekdays lists all weekdays in calendar order, sunday first.
var Weekdays = []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// Valid reports whether w names one of the seven weekdays.
func (w Weekday) Valid() bool {
	switch w {
	case Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday:
		return true
	}
	return false
}

// Interval is a time-of-day range within a single day, "HH:mm" 24-hour,
// minute granularity. Cross-midnight intervals are not supported.
type Interval struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Validate reports malformed or inverted intervals. Mutation paths accept
// intervals without calling this; strict editors check at save time.
func (iv Interval) Validate() error {
	from, err := parseClock(iv.From)
	if err != nil {
		return fmt.Errorf("from %q: %w", iv.From, err)
	}
	to, err := parseClock(iv.To)
	if err != nil {
		return fmt.Errorf("to %q: %w", iv.To, err)
	}
	if from >= to {
		return fmt.Errorf("interval %s-%s is inverted or empty", iv.From, iv.To)
	}
	return nil
}

// parseClock converts "HH:mm" to minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("not HH:mm")
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("not HH:mm")
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("not HH:mm")
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("out of range")
	}
	return hour*60 + minute, nil
}

// AvailabilityEntry is one element of a schedule's availability list. It is a
// tagged union: Type "wady" carries Wday, Type "date" carries Date. Empty
// Intervals means the day is explicitly unavailable; absence of an entry means
// the same thing implicitly.
type AvailabilityEntry struct {
	Type      string     `json:"type"`           // "wady" | "date"
	Wday      Weekday    `json:"wday,omitempty"` // weekly entries only
	Date      string     `json:"date,omitempty"` // date overrides only, YYYY-MM-DD
	Intervals []Interval `json:"intervals"`
}

// IsWeekly reports whether the entry is a weekly-recurring entry.
func (e AvailabilityEntry) IsWeekly() bool { return e.Type == EntryTypeWeekly }

// IsOverride reports whether the entry is a date-specific override.
func (e AvailabilityEntry) IsOverride() bool { return e.Type == EntryTypeDate }

// DayKey normalizes t to the canonical override key, ignoring time-of-day.
// Callers are responsible for putting t in the timezone they mean; the key is
// derived from the wall-clock date of t as given.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// Schedule is a named, timezone-scoped collection of availability entries
// owned by one user. Entry order is insertion order; it carries no meaning.
type Schedule struct {
	ID           string              `json:"_id,omitempty"`
	Name         string              `json:"name"`
	TimeZone     string              `json:"timeZone"` // IANA name
	CreatedBy    string              `json:"createdBy,omitempty"`
	Availability []AvailabilityEntry `json:"availability"`
}

package models

import "time"

// EditScope selects how far an update or delete reaches into a recurring
// series. Sent to the backend as the updateOption/deleteOption parameter.
type EditScope string

const (
	ScopeThisEvent        EditScope = "thisEvent"
	ScopeThisAndFollowing EditScope = "thisAndFollowing"
	ScopeAllEvents        EditScope = "allEvents"
)

// Valid reports whether s is one of the three edit scopes.
func (s EditScope) Valid() bool {
	switch s {
	case ScopeThisEvent, ScopeThisAndFollowing, ScopeAllEvents:
		return true
	}
	return false
}

// Recurrence describes how an event repeats.
type Recurrence struct {
	IsRecurring bool   `json:"isRecurring"`
	Rule        string `json:"rule,omitempty"` // RRULE text, e.g. "FREQ=WEEKLY;BYDAY=MO"
}

// Event is a calendar event. Events generated from one recurrence rule share
// a SeriesID.
type Event struct {
	ID         string      `json:"_id"`
	SeriesID   string      `json:"seriesId,omitempty"`
	Title      string      `json:"title"`
	StartTime  time.Time   `json:"startTime"`
	EndTime    time.Time   `json:"endTime"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`
	Attendees  []string    `json:"attendees,omitempty"`
	Status     string      `json:"status,omitempty"`
}

// InSeries reports whether the event belongs to a recurring series.
func (e Event) InSeries() bool { return e.SeriesID != "" }

// EventQuery is the parameter set of a list-my-events request. Each distinct
// query addresses one cached result set.
type EventQuery struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the half-open window [From, To).
// A zero bound is treated as unbounded on that side.
func (q EventQuery) Contains(t time.Time) bool {
	if !q.From.IsZero() && t.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !t.Before(q.To) {
		return false
	}
	return true
}

// EventList is a cached event result set. The backend returns either a bare
// array or an object wrapping it in an "events" field; both unmarshal into
// this envelope via custom JSON handling in the cache layer.
type EventList struct {
	Events []Event `json:"events"`
}

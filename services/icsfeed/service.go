// Package icsfeed renders a user's cached events as an iCalendar feed, so
// the portal calendar can be subscribed to from external calendar apps.
package icsfeed

import (
	"context"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"campusdesk/models"
)

// EventLister supplies the events to export; in production this is the
// synchronizer's cached List.
type EventLister interface {
	List(ctx context.Context, q models.EventQuery) (models.EventList, error)
}

// Service builds ICS documents.
type Service struct {
	events  EventLister
	prodID  string
	horizon time.Duration // how far ahead the feed reaches
}

// NewService creates a feed service exporting events up to horizon ahead.
func NewService(events EventLister, horizon time.Duration) *Service {
	if horizon <= 0 {
		horizon = 90 * 24 * time.Hour
	}
	return &Service{
		events:  events,
		prodID:  "-//campusdesk//calendar//EN",
		horizon: horizon,
	}
}

// Feed serializes the user's events from now through the horizon as an
// iCalendar document. The query window is bucketed to UTC day boundaries:
// external calendar apps poll every few minutes, and an unbucketed window
// would mint a fresh cache fingerprint per poll in a cache with no eviction.
func (s *Service) Feed(ctx context.Context, now time.Time) (string, error) {
	from := now.UTC().Truncate(24 * time.Hour)
	q := models.EventQuery{From: from, To: from.Add(s.horizon)}
	list, err := s.events.List(ctx, q)
	if err != nil {
		return "", fmt.Errorf("ics feed: %w", err)
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(s.prodID)

	for _, event := range list.Events {
		ve := cal.AddEvent(event.ID + "@campusdesk")
		ve.SetSummary(event.Title)
		ve.SetStartAt(event.StartTime.UTC())
		ve.SetEndAt(event.EndTime.UTC())
		ve.SetDtStampTime(now.UTC())
		if event.Status != "" {
			ve.SetStatus(ical.ObjectStatus(event.Status))
		}
		if event.Recurrence != nil && event.Recurrence.IsRecurring && event.Recurrence.Rule != "" {
			ve.AddRrule(event.Recurrence.Rule)
		}
	}
	return cal.Serialize(), nil
}

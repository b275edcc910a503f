// Package availability maintains the in-memory availability entries of one
// schedule between edits and an explicit save. Every mutation is local and
// synchronous; nothing reaches the backend until Save.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"campusdesk/models"
)

// Default intervals applied by the convenience mutations.
const (
	DefaultDayStart = "09:00"
	DefaultDayEnd   = "17:00"
	NewIntervalFrom = "18:00"
	NewIntervalTo   = "19:00"
)

// ScheduleStore persists schedules. The portal backend implements this over
// REST; tests substitute an in-memory fake.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, name string) (models.Schedule, error)
	UpdateSchedule(ctx context.Context, schedule models.Schedule) (models.Schedule, error)
	ListSchedules(ctx context.Context) ([]models.Schedule, error)
}

// Notifier surfaces user-visible messages. Fire and forget; no editing logic
// depends on delivery.
type Notifier interface {
	Error(msg string)
	Info(msg string)
}

// Service creates and opens schedule editors.
type Service struct {
	store  ScheduleStore
	notify Notifier

	// StrictIntervals makes Save reject malformed or inverted intervals
	// instead of passing them through to the backend.
	StrictIntervals bool
}

// NewService creates a new availability service.
func NewService(store ScheduleStore, notify Notifier) *Service {
	return &Service{store: store, notify: notify}
}

// Create makes a new empty schedule with the given name and timezone and
// returns an editor for it.
func (s *Service) Create(ctx context.Context, name string) (*Editor, error) {
	schedule, err := s.store.CreateSchedule(ctx, name)
	if err != nil {
		s.notify.Error(saveErrorMessage(err))
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return s.Open(schedule), nil
}

// Open wraps an existing schedule in an editor.
func (s *Service) Open(schedule models.Schedule) *Editor {
	return &Editor{
		store:    s.store,
		notify:   s.notify,
		strict:   s.StrictIntervals,
		schedule: schedule,
	}
}

// List returns all schedules visible to the current user.
func (s *Service) List(ctx context.Context) ([]models.Schedule, error) {
	return s.store.ListSchedules(ctx)
}

// Editor mutates one schedule's availability in memory. Mutations cannot
// fail; only Save can, and a failed Save leaves the in-memory state exactly
// as it was. Editors are safe for concurrent use: a mutex serializes every
// mutation and snapshot, and Save holds it for the duration of the request so
// edits never interleave with an in-flight save.
type Editor struct {
	store  ScheduleStore
	notify Notifier
	strict bool

	mu       sync.Mutex
	schedule models.Schedule
}

// Schedule returns a snapshot of the schedule being edited, availability
// included, for rendering.
func (e *Editor) Schedule() models.Schedule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.schedule
	out.Availability = make([]models.AvailabilityEntry, len(e.schedule.Availability))
	copy(out.Availability, e.schedule.Availability)
	return out
}

// SetName renames the schedule.
func (e *Editor) SetName(name string) {
	e.mu.Lock()
	e.schedule.Name = name
	e.mu.Unlock()
}

// SetTimeZone sets the schedule's IANA timezone.
func (e *Editor) SetTimeZone(tz string) {
	e.mu.Lock()
	e.schedule.TimeZone = tz
	e.mu.Unlock()
}

// SetWeeklyIntervals upserts the weekly entry for wday. An empty intervals
// slice keeps the entry with no intervals, which marks the day explicitly
// unavailable; the entry is never removed.
func (e *Editor) SetWeeklyIntervals(wday models.Weekday, intervals []models.Interval) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setWeeklyIntervalsLocked(wday, intervals)
}

func (e *Editor) setWeeklyIntervalsLocked(wday models.Weekday, intervals []models.Interval) {
	copied := make([]models.Interval, len(intervals))
	copy(copied, intervals)

	for i, entry := range e.schedule.Availability {
		if entry.IsWeekly() && entry.Wday == wday {
			e.schedule.Availability[i].Intervals = copied
			return
		}
	}
	e.schedule.Availability = append(e.schedule.Availability, models.AvailabilityEntry{
		Type:      models.EntryTypeWeekly,
		Wday:      wday,
		Intervals: copied,
	})
}

// ToggleDay turns a weekday on with the default working-hours interval, or
// off by clearing its intervals.
func (e *Editor) ToggleDay(wday models.Weekday, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if on {
		e.setWeeklyIntervalsLocked(wday, []models.Interval{{From: DefaultDayStart, To: DefaultDayEnd}})
		return
	}
	e.setWeeklyIntervalsLocked(wday, []models.Interval{})
}

// AddInterval appends the default new interval to wday's weekly entry,
// creating the entry if the day has none yet.
func (e *Editor) AddInterval(wday models.Weekday) {
	e.mu.Lock()
	defer e.mu.Unlock()
	intervals := append(e.weeklyIntervalsLocked(wday), models.Interval{From: NewIntervalFrom, To: NewIntervalTo})
	e.setWeeklyIntervalsLocked(wday, intervals)
}

// RemoveInterval removes the interval at index from wday's weekly entry.
// Out-of-range indexes are ignored.
func (e *Editor) RemoveInterval(wday models.Weekday, index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	intervals := e.weeklyIntervalsLocked(wday)
	if index < 0 || index >= len(intervals) {
		return
	}
	e.setWeeklyIntervalsLocked(wday, append(intervals[:index], intervals[index+1:]...))
}

func (e *Editor) weeklyIntervalsLocked(wday models.Weekday) []models.Interval {
	for _, entry := range e.schedule.Availability {
		if entry.IsWeekly() && entry.Wday == wday {
			out := make([]models.Interval, len(entry.Intervals))
			copy(out, entry.Intervals)
			return out
		}
	}
	return nil
}

// CopyIntervalsToDays overwrites the weekly intervals of every day flagged
// true in targetDays with source. A bulk upsert, not a merge: days flagged
// false are untouched, and each target gets an independent copy.
func (e *Editor) CopyIntervalsToDays(source []models.Interval, targetDays map[models.Weekday]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, wday := range models.Weekdays {
		if targetDays[wday] {
			e.setWeeklyIntervalsLocked(wday, source)
		}
	}
}

// ApplyDateOverride upserts a date override for each given date, all with the
// same intervals. Dates are matched at day granularity; time-of-day on the
// inputs is ignored. Each date gets its own independent entry.
func (e *Editor) ApplyDateOverride(dates []time.Time, intervals []models.Interval) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, date := range dates {
		key := models.DayKey(date)
		copied := make([]models.Interval, len(intervals))
		copy(copied, intervals)

		replaced := false
		for i, entry := range e.schedule.Availability {
			if entry.IsOverride() && entry.Date == key {
				e.schedule.Availability[i].Intervals = copied
				replaced = true
				break
			}
		}
		if !replaced {
			e.schedule.Availability = append(e.schedule.Availability, models.AvailabilityEntry{
				Type:      models.EntryTypeDate,
				Date:      key,
				Intervals: copied,
			})
		}
	}
}

// RemoveDateOverride removes the first override matching entry's date. A miss
// is a silent no-op so double-clicks in the UI stay idempotent.
func (e *Editor) RemoveDateOverride(entry models.AvailabilityEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.schedule.Availability {
		if existing.IsOverride() && existing.Date == entry.Date {
			e.schedule.Availability = append(e.schedule.Availability[:i], e.schedule.Availability[i+1:]...)
			return
		}
	}
}

// Save persists the schedule's name, timezone, and availability. One request
// per call; rapid repeated saves each go out. Failure surfaces a notification
// and leaves the in-memory state untouched.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.strict {
		if err := e.validateIntervals(); err != nil {
			e.notify.Error(err.Error())
			return err
		}
	}

	updated, err := e.store.UpdateSchedule(ctx, e.schedule)
	if err != nil {
		log.Printf("[availability] save schedule %q: %v", e.schedule.Name, err)
		e.notify.Error(saveErrorMessage(err))
		return fmt.Errorf("save schedule: %w", err)
	}
	// Adopt server-assigned fields (ID on first save).
	if updated.ID != "" {
		e.schedule.ID = updated.ID
	}
	return nil
}

func (e *Editor) validateIntervals() error {
	for _, entry := range e.schedule.Availability {
		for _, iv := range entry.Intervals {
			if err := iv.Validate(); err != nil {
				if entry.IsWeekly() {
					return fmt.Errorf("%s: %w", entry.Wday, err)
				}
				return fmt.Errorf("%s: %w", entry.Date, err)
			}
		}
	}
	return nil
}

// saveErrorMessage extracts a user-facing message, falling back to a generic
// one when the error carries nothing presentable.
func saveErrorMessage(err error) string {
	var m interface{ UserMessage() string }
	if errors.As(err, &m) && m.UserMessage() != "" {
		return m.UserMessage()
	}
	return "Could not save your schedule. Please try again."
}

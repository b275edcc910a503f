package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"campusdesk/models"
	"campusdesk/services/availability"
)

var errUnknownSchedule = errors.New("unknown schedule")

// AvailabilityHandler exposes schedule editing. Edits accumulate in a
// server-held editor per schedule and reach the backend only on an explicit
// save.
type AvailabilityHandler struct {
	Service *availability.Service

	mu      sync.Mutex
	editors map[string]*availability.Editor // schedule ID -> open editor
}

// NewAvailabilityHandler creates a new AvailabilityHandler.
func NewAvailabilityHandler(service *availability.Service) *AvailabilityHandler {
	return &AvailabilityHandler{
		Service: service,
		editors: make(map[string]*availability.Editor),
	}
}

// RegisterRoutes attaches the schedule endpoints to r.
func (h *AvailabilityHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/schedules", h.CreateSchedule).Methods(http.MethodPost)
	r.HandleFunc("/api/schedules", h.ListSchedules).Methods(http.MethodGet)
	r.HandleFunc("/api/schedules/{id}", h.GetSchedule).Methods(http.MethodGet)
	r.HandleFunc("/api/schedules/{id}/weekly/{wday}", h.SetWeekly).Methods(http.MethodPut)
	r.HandleFunc("/api/schedules/{id}/weekly/{wday}/toggle", h.ToggleDay).Methods(http.MethodPost)
	r.HandleFunc("/api/schedules/{id}/weekly/{wday}/intervals", h.AddInterval).Methods(http.MethodPost)
	r.HandleFunc("/api/schedules/{id}/weekly/{wday}/intervals/{index}", h.RemoveInterval).Methods(http.MethodDelete)
	r.HandleFunc("/api/schedules/{id}/copy", h.CopyToDays).Methods(http.MethodPost)
	r.HandleFunc("/api/schedules/{id}/overrides", h.ApplyOverride).Methods(http.MethodPost)
	r.HandleFunc("/api/schedules/{id}/overrides/{date}", h.RemoveOverride).Methods(http.MethodDelete)
	r.HandleFunc("/api/schedules/{id}/save", h.SaveSchedule).Methods(http.MethodPost)
}

// editor returns the open editor for a schedule, opening one from the
// backend listing on first touch. Returns errUnknownSchedule when the listing
// succeeded but has no such ID.
func (h *AvailabilityHandler) editor(r *http.Request) (*availability.Editor, error) {
	id := mux.Vars(r)["id"]
	h.mu.Lock()
	defer h.mu.Unlock()
	if ed, ok := h.editors[id]; ok {
		return ed, nil
	}

	schedules, err := h.Service.List(r.Context())
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	for _, s := range schedules {
		if s.ID == id {
			ed := h.Service.Open(s)
			h.editors[id] = ed
			return ed, nil
		}
	}
	return nil, errUnknownSchedule
}

func (h *AvailabilityHandler) requireEditor(w http.ResponseWriter, r *http.Request) (*availability.Editor, bool) {
	ed, err := h.editor(r)
	switch {
	case err == nil:
		return ed, true
	case errors.Is(err, errUnknownSchedule):
		writeError(w, http.StatusNotFound, "schedule not found")
	default:
		writeError(w, http.StatusBadGateway, "could not load schedules")
	}
	return nil, false
}

func parseWday(w http.ResponseWriter, r *http.Request) (models.Weekday, bool) {
	wday := models.Weekday(mux.Vars(r)["wday"])
	if !wday.Valid() {
		writeError(w, http.StatusBadRequest, "unknown weekday: "+string(wday))
		return "", false
	}
	return wday, true
}

// CreateSchedule makes a new named schedule and opens an editor for it.
func (h *AvailabilityHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ed, err := h.Service.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not create schedule")
		return
	}
	schedule := ed.Schedule()
	h.mu.Lock()
	h.editors[schedule.ID] = ed
	h.mu.Unlock()
	writeJSON(w, http.StatusCreated, schedule)
}

// ListSchedules returns the user's schedules.
func (h *AvailabilityHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.Service.List(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not list schedules")
		return
	}
	if schedules == nil {
		schedules = []models.Schedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

// GetSchedule returns the current in-editor state of one schedule, unsaved
// edits included.
func (h *AvailabilityHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.requireEditor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ed.Schedule())
}

// SetWeekly replaces the weekly intervals of one day.
func (h *AvailabilityHandler) SetWeekly(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.requireEditor(w, r)
	if !ok {
		return
	}
	wday, ok := parseWday(w, r)
	if !ok {
		return
	}
	var req struct {
		Intervals []models.Interval `json:"intervals"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ed.SetWeeklyIntervals(wday, req.Intervals)
	writeJSON(w, http.StatusOK, ed.Schedule())
}

// ToggleDay switches a day on (default hours) or off.
func (h *AvailabilityHandler) ToggleDay(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.requireEditor(w, r)
	if !ok {
		return
	}
	wday, ok := parseWday(w, r)
	if !ok {
		return
	}
	var req struct {
		On bool `json:"on"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ed.ToggleDay(wday, req.On)
	writeJSON(w, http.StatusOK, ed.Schedule())
}

// AddInterval appends the default interval to a day.
func (h *AvailabilityHandler) AddInterval(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.requireEditor(w, r)
	if !ok {
		return
	}
	wday, ok := parseWday(w, r)
	if !ok {
		return
	}
	ed.AddInterval(wday)
	writeJSON(w, http.StatusOK, ed.Schedule())
}

// RemoveInterval removes one interval of a day by position.
func (h *AvailabilityHandler) RemoveInterval(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.requireEditor(w, r)
	if !ok {
		return
	}
	wday, ok := parseWday(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid interval index")
		return
	}
	ed.RemoveInterval(wday, index)
	writeJSON(w, http.StatusOK, ed.Schedule())
}

// CopyToDays copies a set of intervals onto several days at once.
func (h *AvailabilityHandler) CopyToDays(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.requireEditor(w, r)
	if !ok {
		return
	}
	var req struct {
		Intervals  []models.Interval       `json:"intervals" validate:"required"`
		TargetDays map[models.Weekday]bool `json:"targetDays" validate:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ed.CopyIntervalsToDays(req.Intervals, req.TargetDays)
	writeJSON(w, http.StatusOK, ed.Schedule())
}

// ApplyOverride upserts date overrides for one or more calendar dates.
func (h *AvailabilityHandler) ApplyOverride(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.requireEditor(w, r)
	if !ok {
		return
	}
	var req struct {
		Dates     []string          `json:"dates" validate:"required,min=1"`
		Intervals []models.Interval `json:"intervals"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	dates := make([]time.Time, 0, len(req.Dates))
	for _, s := range req.Dates {
		d, err := time.Parse(models.DayKeyLayout, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: "+s)
			return
		}
		dates = append(dates, d)
	}
	ed.ApplyDateOverride(dates, req.Intervals)
	writeJSON(w, http.StatusOK, ed.Schedule())
}

// RemoveOverride removes the override for one date. Removing a date with no
// override succeeds without effect.
func (h *AvailabilityHandler) RemoveOverride(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.requireEditor(w, r)
	if !ok {
		return
	}
	date := mux.Vars(r)["date"]
	if _, err := time.Parse(models.DayKeyLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: "+date)
		return
	}
	ed.RemoveDateOverride(models.AvailabilityEntry{Type: models.EntryTypeDate, Date: date})
	writeJSON(w, http.StatusOK, ed.Schedule())
}

// SaveSchedule persists the accumulated edits.
func (h *AvailabilityHandler) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.requireEditor(w, r)
	if !ok {
		return
	}
	if err := ed.Save(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "save failed")
		return
	}
	writeJSON(w, http.StatusOK, ed.Schedule())
}

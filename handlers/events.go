package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"campusdesk/models"
	"campusdesk/services/calendarsync"
	"campusdesk/services/icsfeed"
	"campusdesk/services/recurrence"
)

// EventsHandler exposes calendar-event reads and mutations. Mutations go
// through the synchronizer so every cached view stays consistent.
type EventsHandler struct {
	Sync *calendarsync.Service
	Feed *icsfeed.Service
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(sync *calendarsync.Service, feed *icsfeed.Service) *EventsHandler {
	return &EventsHandler{Sync: sync, Feed: feed}
}

// RegisterRoutes attaches the event endpoints to r.
func (h *EventsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/events", h.ListEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/events", h.CreateEvent).Methods(http.MethodPost)
	r.HandleFunc("/api/events/{id}", h.UpdateEvent).Methods(http.MethodPut)
	r.HandleFunc("/api/events/{id}", h.DeleteEvent).Methods(http.MethodDelete)
	r.HandleFunc("/api/events/recurrence/preview", h.PreviewRecurrence).Methods(http.MethodPost)
	r.HandleFunc("/api/calendar.ics", h.CalendarFeed).Methods(http.MethodGet)
}

func parseWindow(r *http.Request) (models.EventQuery, error) {
	var q models.EventQuery
	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.From = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.To = t
	}
	return q, nil
}

// ListEvents serves the cached result set for the requested window, fetching
// it on a cache miss.
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from/to: use RFC3339 timestamps")
		return
	}
	list, err := h.Sync.List(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not list events")
		return
	}
	if list.Events == nil {
		list.Events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateEvent creates an event through the synchronizer.
func (h *EventsHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.Event
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.Sync.Create(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not create event")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateEvent applies an update with the scope from the updateOption
// parameter (default thisEvent).
func (h *EventsHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	scope := models.EditScope(r.URL.Query().Get("updateOption"))
	if scope == "" {
		scope = models.ScopeThisEvent
	}
	if !scope.Valid() {
		writeError(w, http.StatusBadRequest, "unknown updateOption: "+string(scope))
		return
	}

	var req models.Event
	if !decodeBody(w, r, &req) {
		return
	}
	req.ID = mux.Vars(r)["id"]

	updated, err := h.Sync.Update(r.Context(), req, scope)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not update event")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteEvent deletes with the scope from the deleteOption parameter. The
// body carries the target event record: series filtering needs its seriesId
// and startTime locally.
func (h *EventsHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	scope := models.EditScope(r.URL.Query().Get("deleteOption"))
	if scope == "" {
		scope = models.ScopeThisEvent
	}
	if !scope.Valid() {
		writeError(w, http.StatusBadRequest, "unknown deleteOption: "+string(scope))
		return
	}

	var target models.Event
	if !decodeBody(w, r, &target) {
		return
	}
	target.ID = mux.Vars(r)["id"]

	if err := h.Sync.Delete(r.Context(), target, scope); err != nil {
		writeError(w, http.StatusBadGateway, "could not delete event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": target.ID})
}

// PreviewRecurrence expands a recurrence rule for display before save.
func (h *EventsHandler) PreviewRecurrence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rule  string    `json:"rule" validate:"required"`
		Start time.Time `json:"start" validate:"required"`
		From  time.Time `json:"from" validate:"required"`
		To    time.Time `json:"to" validate:"required"`
		Limit int       `json:"limit"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	occurrences, err := recurrence.Preview(req.Rule, req.Start, req.From, req.To, req.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if occurrences == nil {
		occurrences = []time.Time{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"occurrences": occurrences})
}

// CalendarFeed serves the user's events as an iCalendar document.
func (h *EventsHandler) CalendarFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.Feed.Feed(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not build calendar feed")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Write([]byte(feed))
}

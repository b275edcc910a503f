package calendarapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campusdesk/models"
)

func TestListMyEvents_WrappedBody(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"events":[{"_id":"e1","title":"Demo day"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	from := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	list, err := c.ListMyEvents(context.Background(), models.EventQuery{From: from, To: from.AddDate(0, 0, 7)})
	if err != nil {
		t.Fatalf("ListMyEvents failed: %v", err)
	}
	if len(list.Events) != 1 || list.Events[0].ID != "e1" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if gotQuery == "" {
		t.Error("expected from/to query parameters")
	}
}

func TestListMyEvents_BareArrayBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"_id":"e1"},{"_id":"e2"}]`))
	}))
	defer srv.Close()

	list, err := NewClient(srv.URL, "").ListMyEvents(context.Background(), models.EventQuery{})
	if err != nil {
		t.Fatalf("ListMyEvents failed: %v", err)
	}
	if len(list.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(list.Events))
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"_id":"e1","title":"Retreat"}`))
	}))
	defer srv.Close()

	event, err := NewClient(srv.URL, "").GetEvent(context.Background(), "e1")
	if err != nil {
		t.Fatalf("GetEvent failed after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if event.Title != "Retreat" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"event not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").GetEvent(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("4xx must not retry, got %d attempts", attempts)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.UserMessage() != "event not found" {
		t.Errorf("server message not surfaced: %q", apiErr.UserMessage())
	}
}

func TestMutationsNeverRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.CreateEvent(context.Background(), models.Event{Title: "Standup"}); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("mutation retried: %d attempts", attempts)
	}
}

func TestDeleteEventSendsScope(t *testing.T) {
	var gotMethod, gotOption string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotOption = r.URL.Query().Get("deleteOption")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").DeleteEvent(context.Background(), "e1", models.ScopeThisAndFollowing)
	if err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("expected DELETE, got %s", gotMethod)
	}
	if gotOption != "thisAndFollowing" {
		t.Errorf("expected deleteOption=thisAndFollowing, got %q", gotOption)
	}
}

func TestUpdateScheduleSendsAvailability(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"_id":"sched-1"}`))
	}))
	defer srv.Close()

	schedule := models.Schedule{
		ID:       "sched-1",
		Name:     "Office hours",
		TimeZone: "America/New_York",
		Availability: []models.AvailabilityEntry{
			{Type: models.EntryTypeWeekly, Wday: models.Monday, Intervals: []models.Interval{{From: "09:00", To: "17:00"}}},
		},
	}
	if _, err := NewClient(srv.URL, "token").UpdateSchedule(context.Background(), schedule); err != nil {
		t.Fatalf("UpdateSchedule failed: %v", err)
	}
	for _, field := range []string{"name", "timeZone", "availability"} {
		if _, ok := got[field]; !ok {
			t.Errorf("payload missing %q: %v", field, got)
		}
	}
}

func TestAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	NewClient(srv.URL, "secret").ListSchedules(context.Background())
	if gotAuth != "Bearer secret" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
}

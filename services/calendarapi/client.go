// Package calendarapi is the HTTP client for the portal backend's schedule
// and calendar-event endpoints.
package calendarapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"campusdesk/internal/querycache"
	"campusdesk/models"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response from the backend. Message carries the
// server's error text when the body had one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// UserMessage is the text shown in the failure toast.
func (e *APIError) UserMessage() string { return e.Message }

// Client talks to the portal backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
}

// NewClient creates a client for the backend at baseURL. authToken may be
// empty for unauthenticated deployments.
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		authToken:  authToken,
	}
}

// --- Schedules ---

// CreateSchedule creates an empty named schedule.
func (c *Client) CreateSchedule(ctx context.Context, name string) (models.Schedule, error) {
	var out models.Schedule
	err := c.doJSON(ctx, http.MethodPost, "/api/schedules", map[string]string{"name": name}, &out)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("create schedule: %w", err)
	}
	return out, nil
}

// UpdateSchedule saves a schedule's name, timezone, and availability.
func (c *Client) UpdateSchedule(ctx context.Context, schedule models.Schedule) (models.Schedule, error) {
	payload := map[string]any{
		"name":         schedule.Name,
		"timeZone":     schedule.TimeZone,
		"availability": schedule.Availability,
	}
	var out models.Schedule
	err := c.doJSON(ctx, http.MethodPut, "/api/schedules/"+url.PathEscape(schedule.ID), payload, &out)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("update schedule: %w", err)
	}
	return out, nil
}

// ListSchedules returns the current user's schedules.
func (c *Client) ListSchedules(ctx context.Context) ([]models.Schedule, error) {
	var out []models.Schedule
	err := c.getWithRetry(ctx, "/api/schedules", func(body []byte) error {
		return json.Unmarshal(body, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return out, nil
}

// --- Events ---

// CreateEvent creates an event and returns the created record, ID and
// series ID assigned.
func (c *Client) CreateEvent(ctx context.Context, event models.Event) (models.Event, error) {
	var out models.Event
	if err := c.doJSON(ctx, http.MethodPost, "/api/events", event, &out); err != nil {
		return models.Event{}, fmt.Errorf("create event: %w", err)
	}
	return out, nil
}

// GetEvent fetches one event by ID.
func (c *Client) GetEvent(ctx context.Context, id string) (models.Event, error) {
	var out models.Event
	err := c.getWithRetry(ctx, "/api/events/"+url.PathEscape(id), func(body []byte) error {
		return json.Unmarshal(body, &out)
	})
	if err != nil {
		return models.Event{}, fmt.Errorf("get event %s: %w", id, err)
	}
	return out, nil
}

// UpdateEvent applies changes to an event with the given scope.
func (c *Client) UpdateEvent(ctx context.Context, event models.Event, scope models.EditScope) (models.Event, error) {
	path := fmt.Sprintf("/api/events/%s?updateOption=%s", url.PathEscape(event.ID), scope)
	var out models.Event
	if err := c.doJSON(ctx, http.MethodPut, path, event, &out); err != nil {
		return models.Event{}, fmt.Errorf("update event %s: %w", event.ID, err)
	}
	return out, nil
}

// DeleteEvent deletes an event with the given scope.
func (c *Client) DeleteEvent(ctx context.Context, id string, scope models.EditScope) error {
	path := fmt.Sprintf("/api/events/%s?deleteOption=%s", url.PathEscape(id), scope)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

// ListMyEvents fetches the user's events in the query window. The backend
// historically returned a bare array and newer versions wrap it; both decode.
func (c *Client) ListMyEvents(ctx context.Context, q models.EventQuery) (models.EventList, error) {
	v := url.Values{}
	if !q.From.IsZero() {
		v.Set("from", q.From.UTC().Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.UTC().Format(time.RFC3339))
	}
	path := "/api/events"
	if enc := v.Encode(); enc != "" {
		path += "?" + enc
	}

	var out models.EventList
	err := c.getWithRetry(ctx, path, func(body []byte) error {
		list, err := querycache.DecodeResultSet(body)
		if err != nil {
			return err
		}
		out = list
		return nil
	})
	if err != nil {
		return models.EventList{}, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// --- Plumbing ---

// doJSON issues one request with no retry. Mutations must never be retried
// automatically; a failed mutation is terminal until the user re-triggers it.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	body, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// getWithRetry issues a GET, retrying transient failures (network errors and
// 5xx) a few times with backoff. 4xx responses and decode errors fail
// immediately.
func (c *Client) getWithRetry(ctx context.Context, path string, decode func([]byte) error) error {
	return retry.Do(
		func() error {
			body, err := c.do(ctx, http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			if err := decode(body); err != nil {
				return retry.Unrecoverable(err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.RetryIf(func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode >= 500
			}
			return retry.IsRecoverable(err)
		}),
		retry.LastErrorOnly(true),
	)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: extractErrorMessage(body)}
	}
	return body, nil
}

// extractErrorMessage pulls the server's error text out of common error body
// shapes ({"error": ...} or {"message": ...}).
func extractErrorMessage(body []byte) string {
	var shape struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return ""
	}
	if shape.Error != "" {
		return shape.Error
	}
	return shape.Message
}

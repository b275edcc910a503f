package querycache

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"campusdesk/models"
)

// Fingerprint serializes an event query into the canonical cache key suffix.
// Zero bounds are omitted so an unbounded query and an explicit zero time
// produce the same key.
func Fingerprint(q models.EventQuery) string {
	v := url.Values{}
	if !q.From.IsZero() {
		v.Set("from", q.From.UTC().Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.UTC().Format(time.RFC3339))
	}
	return v.Encode()
}

// EventKey builds the cache key for an event-list query.
func EventKey(q models.EventQuery) Key {
	return Key{Tag: TagEvents, Fingerprint: Fingerprint(q)}
}

// ParseFingerprint recovers the query parameters embedded in a fingerprint.
// This is an internal convenience for re-running a cached view's query; the
// encoded form is not a public contract.
func ParseFingerprint(fp string) (models.EventQuery, error) {
	v, err := url.ParseQuery(fp)
	if err != nil {
		return models.EventQuery{}, fmt.Errorf("parse fingerprint %q: %w", fp, err)
	}
	var q models.EventQuery
	if s := v.Get("from"); s != "" {
		q.From, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return models.EventQuery{}, fmt.Errorf("parse fingerprint from: %w", err)
		}
	}
	if s := v.Get("to"); s != "" {
		q.To, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return models.EventQuery{}, fmt.Errorf("parse fingerprint to: %w", err)
		}
	}
	return q, nil
}

// DecodeResultSet decodes an event-list payload. The backend returns either a
// bare array or an object with an "events" field; both are accepted.
func DecodeResultSet(data []byte) (models.EventList, error) {
	var wrapped models.EventList
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Events != nil {
		return wrapped, nil
	}
	var bare []models.Event
	if err := json.Unmarshal(data, &bare); err != nil {
		return models.EventList{}, fmt.Errorf("decode result set: %w", err)
	}
	return models.EventList{Events: bare}, nil
}

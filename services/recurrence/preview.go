// Package recurrence expands recurrence rules client-side for preview
// purposes — showing a user the upcoming occurrences of a rule before the
// event is saved. The backend remains authoritative for actual series
// materialization; nothing here feeds the cache.
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultPreviewLimit caps how many occurrences one preview returns.
const DefaultPreviewLimit = 50

// Preview expands an RRULE anchored at start into concrete occurrence times
// within [from, to], capped at limit (DefaultPreviewLimit when limit <= 0).
func Preview(rule string, start, from, to time.Time, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	if to.Before(from) {
		return nil, fmt.Errorf("preview window ends before it starts")
	}

	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("parse rule %q: %w", rule, err)
	}
	r.DTStart(start)

	occurrences := r.Between(from, to, true)
	if len(occurrences) > limit {
		occurrences = occurrences[:limit]
	}
	return occurrences, nil
}

// NextOccurrence returns the first occurrence of rule at or after t, or a
// zero time when the rule has ended.
func NextOccurrence(rule string, start, t time.Time) (time.Time, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse rule %q: %w", rule, err)
	}
	r.DTStart(start)
	return r.After(t, true), nil
}

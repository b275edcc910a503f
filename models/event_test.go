package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEditScopeValid(t *testing.T) {
	assert.True(t, ScopeThisEvent.Valid())
	assert.True(t, ScopeThisAndFollowing.Valid())
	assert.True(t, ScopeAllEvents.Valid())
	assert.False(t, EditScope("everything").Valid())
	assert.False(t, EditScope("").Valid())
}

func TestEventQueryContainsHalfOpen(t *testing.T) {
	from := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)
	q := EventQuery{From: from, To: to}

	assert.True(t, q.Contains(from), "lower bound is inclusive")
	assert.True(t, q.Contains(to.Add(-time.Second)))
	assert.False(t, q.Contains(to), "upper bound is exclusive")
	assert.False(t, q.Contains(from.Add(-time.Second)))
}

func TestEventQueryZeroBoundsAreUnbounded(t *testing.T) {
	anytime := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, EventQuery{}.Contains(anytime))

	onlyFrom := EventQuery{From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.True(t, onlyFrom.Contains(anytime))
	assert.False(t, onlyFrom.Contains(time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)))
}

func TestEventInSeries(t *testing.T) {
	assert.False(t, Event{ID: "e1"}.InSeries())
	assert.True(t, Event{ID: "e1", SeriesID: "s1"}.InSeries())
}

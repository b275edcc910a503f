// Package calendarsync keeps every cached event-list view consistent with
// event mutations. Patches are applied only after the backend confirms a
// mutation, so there is nothing speculative to roll back: a failed request
// leaves every cached view exactly as it was. A cache-patch failure after a
// confirmed mutation is logged and swallowed — the cache self-heals on the
// next fetch.
package calendarsync

import (
	"context"
	"errors"
	"log"

	"github.com/sourcegraph/conc/pool"

	"campusdesk/internal/querycache"
	"campusdesk/models"
)

const refetchConcurrency = 4

// EventAPI is the backend's event surface.
type EventAPI interface {
	CreateEvent(ctx context.Context, event models.Event) (models.Event, error)
	UpdateEvent(ctx context.Context, event models.Event, scope models.EditScope) (models.Event, error)
	DeleteEvent(ctx context.Context, id string, scope models.EditScope) error
	ListMyEvents(ctx context.Context, q models.EventQuery) (models.EventList, error)
}

// Notifier surfaces mutation failures to the user.
type Notifier interface {
	Error(msg string)
}

// Service wraps event mutations with cached-view synchronization. UI
// collaborators call the mutation methods and observe results through the
// cache; the patching protocol is internal.
type Service struct {
	api    EventAPI
	cache  *querycache.Cache
	notify Notifier

	// RangeAware restricts create patches to cached views whose query
	// window contains the new event's start time. Off by default: the
	// permissive fan-out never misses an insert, at the cost of sometimes
	// inserting into a view whose range doesn't cover the event.
	RangeAware bool
}

// New creates a synchronizer over the given backend client and cache.
func New(api EventAPI, cache *querycache.Cache, notify Notifier) *Service {
	return &Service{api: api, cache: cache, notify: notify}
}

// List returns the cached result set for q, fetching and populating the
// cache on a miss.
func (s *Service) List(ctx context.Context, q models.EventQuery) (models.EventList, error) {
	key := querycache.EventKey(q)
	if list, err := s.cache.Get(key); err == nil {
		return list, nil
	}
	list, err := s.api.ListMyEvents(ctx, q)
	if err != nil {
		return models.EventList{}, err
	}
	s.cache.Put(key, list)
	return list, nil
}

// Create creates an event and reconciles every cached view. A recurring
// creation invalidates the whole event tag: the series may materialize into
// date ranges the client cannot enumerate. A one-off creation is appended to
// every active view.
func (s *Service) Create(ctx context.Context, event models.Event) (models.Event, error) {
	created, err := s.api.CreateEvent(ctx, event)
	if err != nil {
		log.Printf("[calendarsync] create event: %v", err)
		s.notify.Error(mutationErrorMessage(err, "Could not create the event."))
		return models.Event{}, err
	}

	s.patch("create", func() {
		if created.Recurrence != nil && created.Recurrence.IsRecurring {
			s.cache.InvalidateTag(querycache.TagEvents)
			return
		}
		for _, key := range s.cache.KeysForTag(querycache.TagEvents) {
			if s.RangeAware && !s.keyContains(key, created) {
				continue
			}
			s.updateKey(key, func(list *models.EventList) {
				list.Events = append(list.Events, created)
			})
		}
	})
	return created, nil
}

// Update applies an event update. A thisEvent update replaces the matching
// record in place everywhere; wider scopes invalidate the tag because the
// affected event IDs are only known server-side.
func (s *Service) Update(ctx context.Context, event models.Event, scope models.EditScope) (models.Event, error) {
	updated, err := s.api.UpdateEvent(ctx, event, scope)
	if err != nil {
		log.Printf("[calendarsync] update event %s: %v", event.ID, err)
		s.notify.Error(mutationErrorMessage(err, "Could not update the event."))
		return models.Event{}, err
	}

	s.patch("update", func() {
		if scope != models.ScopeThisEvent {
			s.cache.InvalidateTag(querycache.TagEvents)
			return
		}
		for _, key := range s.cache.KeysForTag(querycache.TagEvents) {
			s.updateKey(key, func(list *models.EventList) {
				for i := range list.Events {
					if list.Events[i].ID == updated.ID {
						list.Events[i] = updated
					}
				}
			})
		}
	})
	return updated, nil
}

// Delete deletes target with the given scope and filters the affected events
// out of every cached view. The full target record is required because the
// thisAndFollowing filter compares series membership and start times locally.
func (s *Service) Delete(ctx context.Context, target models.Event, scope models.EditScope) error {
	if err := s.api.DeleteEvent(ctx, target.ID, scope); err != nil {
		log.Printf("[calendarsync] delete event %s: %v", target.ID, err)
		s.notify.Error(mutationErrorMessage(err, "Could not delete the event."))
		return err
	}

	keep := deleteFilter(target, scope)
	s.patch("delete", func() {
		for _, key := range s.cache.KeysForTag(querycache.TagEvents) {
			s.updateKey(key, func(list *models.EventList) {
				kept := list.Events[:0]
				for _, e := range list.Events {
					if keep(e) {
						kept = append(kept, e)
					}
				}
				list.Events = kept
			})
		}
	})
	return nil
}

// deleteFilter returns the predicate deciding which cached events survive a
// confirmed delete.
func deleteFilter(target models.Event, scope models.EditScope) func(models.Event) bool {
	switch scope {
	case models.ScopeThisAndFollowing:
		// The target itself plus every series sibling starting strictly
		// after it.
		return func(e models.Event) bool {
			if e.ID == target.ID {
				return false
			}
			return !(target.InSeries() && e.SeriesID == target.SeriesID && e.StartTime.After(target.StartTime))
		}
	case models.ScopeAllEvents:
		return func(e models.Event) bool {
			if target.InSeries() {
				return e.SeriesID != target.SeriesID && e.ID != target.ID
			}
			return e.ID != target.ID
		}
	default: // ScopeThisEvent
		return func(e models.Event) bool { return e.ID != target.ID }
	}
}

// RefetchStale re-runs the queries of every invalidated view and repopulates
// the cache, a few fingerprints at a time. Individual failures are logged;
// those views simply stay stale until their next read.
func (s *Service) RefetchStale(ctx context.Context) {
	stale := s.cache.StaleKeysForTag(querycache.TagEvents)
	if len(stale) == 0 {
		return
	}

	p := pool.New().WithMaxGoroutines(refetchConcurrency)
	for _, key := range stale {
		p.Go(func() {
			q, err := querycache.ParseFingerprint(key.Fingerprint)
			if err != nil {
				log.Printf("[calendarsync] refetch: bad fingerprint %q: %v", key.Fingerprint, err)
				return
			}
			list, err := s.api.ListMyEvents(ctx, q)
			if err != nil {
				log.Printf("[calendarsync] refetch %q: %v", key.Fingerprint, err)
				return
			}
			s.cache.Put(key, list)
		})
	}
	p.Wait()
}

// WatchInvalidations re-warms invalidated views as invalidations happen, so
// cached reads recover without waiting for each view's next explicit fetch.
// The subscription is registered before this returns; the watcher runs until
// ctx is done or the returned stop function is called.
func (s *Service) WatchInvalidations(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	ch, cancelSub := s.cache.Subscribe(querycache.TagEvents)
	go func() {
		defer cancelSub()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-ch:
				if n.Kind == querycache.KindInvalidate {
					s.RefetchStale(ctx)
				}
			}
		}
	}()
	return cancel
}

// keyContains reports whether the query window behind key contains the
// event's start. Unparseable fingerprints count as containing, falling back
// to the permissive fan-out for that key.
func (s *Service) keyContains(key querycache.Key, event models.Event) bool {
	q, err := querycache.ParseFingerprint(key.Fingerprint)
	if err != nil {
		log.Printf("[calendarsync] bad fingerprint %q: %v", key.Fingerprint, err)
		return true
	}
	return q.Contains(event.StartTime)
}

// updateKey applies a mutator to one cached view. A view that went stale
// between enumeration and patch is skipped silently.
func (s *Service) updateKey(key querycache.Key, mutate func(*models.EventList)) {
	if err := s.cache.Update(key, mutate); err != nil && !errors.Is(err, querycache.ErrNotFound) {
		log.Printf("[calendarsync] patch %s/%s: %v", key.Tag, key.Fingerprint, err)
	}
}

// patch runs a cache reconciliation step. The mutation has already succeeded
// server-side by the time this runs, so a patching failure must never
// propagate — worst case the cache is stale until the next fetch.
func (s *Service) patch(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[calendarsync] %s patch failed: %v (cache heals on next fetch)", op, r)
		}
	}()
	fn()
}

// mutationErrorMessage prefers the server's error text, falling back to a
// generic toast message.
func mutationErrorMessage(err error, fallback string) string {
	var m interface{ UserMessage() string }
	if errors.As(err, &m) && m.UserMessage() != "" {
		return m.UserMessage()
	}
	return fallback
}

// Package querycache is a tagged, fingerprinted result-set cache for list
// queries. Each cached set is addressed by Key{Tag, Fingerprint}, where the
// fingerprint is a canonical serialization of the query parameters that
// produced it. Writers mutate sets through Update; readers observe changes
// through per-tag subscriptions, so nothing in the core couples to a
// rendering layer.
package querycache

import (
	"errors"
	"log"
	"sync"
	"time"

	"campusdesk/models"
)

// TagEvents is the tag under which all event-list result sets are cached.
const TagEvents = "events"

var ErrNotFound = errors.New("querycache: no cached set for key")

// Key addresses one cached result set.
type Key struct {
	Tag         string
	Fingerprint string
}

// Notification kinds.
const (
	KindPut        = "put"
	KindUpdate     = "update"
	KindInvalidate = "invalidate"
)

// Notification describes one cache change delivered to subscribers.
type Notification struct {
	Kind string // KindPut | KindUpdate | KindInvalidate
	Key  Key    // zero Fingerprint for tag-wide invalidations
}

type entry struct {
	list     models.EventList
	stale    bool
	storedAt time.Time
}

// Store persists cached result sets across restarts. Implementations must
// tolerate write failures silently degrading to memory-only behavior.
type Store interface {
	Save(key Key, list models.EventList) error
	Delete(key Key) error
	DeleteTag(tag string) error
	LoadTag(tag string) (map[Key]models.EventList, error)
}

// Cache is a process-wide cache of query result sets. A single mutex
// serializes every mutation, which is the serialized-update guarantee the
// synchronizer relies on: two Update calls against the same key never
// interleave.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	subs    map[string][]chan Notification
	store   Store // nil for memory-only
}

// New creates an empty in-memory cache.
func New() *Cache {
	return &Cache{
		entries: make(map[Key]*entry),
		subs:    make(map[string][]chan Notification),
	}
}

// NewWithStore creates a cache that writes through to store and warms the
// given tags from it. Load failures are logged and skipped; the cache then
// starts cold for that tag.
func NewWithStore(store Store, warmTags ...string) *Cache {
	c := New()
	c.store = store
	for _, tag := range warmTags {
		loaded, err := store.LoadTag(tag)
		if err != nil {
			log.Printf("[querycache] warm %q: %v", tag, err)
			continue
		}
		for key, list := range loaded {
			c.entries[key] = &entry{list: list, storedAt: time.Now().UTC()}
		}
	}
	return c
}

// Put stores a freshly fetched result set, replacing any previous set (stale
// or not) under the same key.
func (c *Cache) Put(key Key, list models.EventList) {
	c.mu.Lock()
	c.entries[key] = &entry{list: cloneList(list), storedAt: time.Now().UTC()}
	c.persist(key, list)
	c.notifyLocked(key.Tag, Notification{Kind: KindPut, Key: key})
	c.mu.Unlock()
}

// Get returns a copy of the cached set for key. A stale set reports
// ErrNotFound so callers refetch.
func (c *Cache) Get(key Key) (models.EventList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.stale {
		return models.EventList{}, ErrNotFound
	}
	return cloneList(e.list), nil
}

// Update applies mutate to the cached set for key, if one is live. The
// mutator runs under the cache lock and must not call back into the cache.
// Updating a missing or stale key is a no-op returning ErrNotFound.
func (c *Cache) Update(key Key, mutate func(*models.EventList)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.stale {
		return ErrNotFound
	}
	mutate(&e.list)
	c.persist(key, e.list)
	c.notifyLocked(key.Tag, Notification{Kind: KindUpdate, Key: key})
	return nil
}

// KeysForTag enumerates the currently live (non-stale) fingerprints under tag.
func (c *Cache) KeysForTag(tag string) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []Key
	for key, e := range c.entries {
		if key.Tag == tag && !e.stale {
			keys = append(keys, key)
		}
	}
	return keys
}

// InvalidateTag marks every set under tag stale. Stale sets stay enumerable
// through StaleKeysForTag so a refetcher can re-run their queries, but Get
// and Update refuse them.
func (c *Cache) InvalidateTag(tag string) {
	c.mu.Lock()
	for key, e := range c.entries {
		if key.Tag == tag {
			e.stale = true
		}
	}
	if c.store != nil {
		if err := c.store.DeleteTag(tag); err != nil {
			log.Printf("[querycache] persist invalidate %q: %v", tag, err)
		}
	}
	c.notifyLocked(tag, Notification{Kind: KindInvalidate, Key: Key{Tag: tag}})
	c.mu.Unlock()
}

// StaleKeysForTag enumerates fingerprints invalidated but not yet replaced.
func (c *Cache) StaleKeysForTag(tag string) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []Key
	for key, e := range c.entries {
		if key.Tag == tag && e.stale {
			keys = append(keys, key)
		}
	}
	return keys
}

// Subscribe registers a buffered notification channel for tag. Notifications
// that would block are dropped; subscribers reconcile by re-reading the
// cache, not by replaying every signal. The returned func unsubscribes.
func (c *Cache) Subscribe(tag string) (<-chan Notification, func()) {
	ch := make(chan Notification, 16)
	c.mu.Lock()
	c.subs[tag] = append(c.subs[tag], ch)
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		subs := c.subs[tag]
		for i, sub := range subs {
			if sub == ch {
				c.subs[tag] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Cache) notifyLocked(tag string, n Notification) {
	for _, ch := range c.subs[tag] {
		select {
		case ch <- n:
		default:
			// Subscriber is behind; it will catch up on its next read.
		}
	}
}

func (c *Cache) persist(key Key, list models.EventList) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(key, list); err != nil {
		log.Printf("[querycache] persist %s/%s: %v", key.Tag, key.Fingerprint, err)
	}
}

func cloneList(list models.EventList) models.EventList {
	out := models.EventList{Events: make([]models.Event, len(list.Events))}
	copy(out.Events, list.Events)
	return out
}

package querycache

import (
	"path/filepath"
	"testing"
	"time"

	"campusdesk/models"
)

// setupTestStore creates a store backed by a throwaway database file.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSaveAndLoad(t *testing.T) {
	store := setupTestStore(t)
	key := testKey(1)
	list := models.EventList{Events: []models.Event{testEvent("e1", time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))}}

	if err := store.Save(key, list); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.LoadTag(TagEvents)
	if err != nil {
		t.Fatalf("LoadTag failed: %v", err)
	}
	got, ok := loaded[key]
	if !ok {
		t.Fatalf("saved key missing from load: %+v", loaded)
	}
	if len(got.Events) != 1 || got.Events[0].ID != "e1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestStoreSaveOverwrites(t *testing.T) {
	store := setupTestStore(t)
	key := testKey(1)
	store.Save(key, models.EventList{Events: []models.Event{testEvent("e1", time.Now().UTC())}})
	store.Save(key, models.EventList{Events: []models.Event{testEvent("e2", time.Now().UTC())}})

	loaded, err := store.LoadTag(TagEvents)
	if err != nil {
		t.Fatalf("LoadTag failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 row after overwrite, got %d", len(loaded))
	}
	if loaded[key].Events[0].ID != "e2" {
		t.Errorf("expected second save to win, got %+v", loaded[key])
	}
}

func TestStoreDeleteTag(t *testing.T) {
	store := setupTestStore(t)
	store.Save(testKey(1), models.EventList{})
	store.Save(testKey(8), models.EventList{})
	store.Save(Key{Tag: "schedules", Fingerprint: "all"}, models.EventList{})

	if err := store.DeleteTag(TagEvents); err != nil {
		t.Fatalf("DeleteTag failed: %v", err)
	}

	events, _ := store.LoadTag(TagEvents)
	if len(events) != 0 {
		t.Errorf("expected no event rows, got %d", len(events))
	}
	schedules, _ := store.LoadTag("schedules")
	if len(schedules) != 1 {
		t.Errorf("delete crossed tags: %d schedule rows", len(schedules))
	}
}

func TestCacheWarmsFromStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	key := testKey(1)
	c := NewWithStore(store, TagEvents)
	c.Put(key, models.EventList{Events: []models.Event{testEvent("e1", time.Now().UTC())}})

	// A second cache over the same store sees the earlier Put.
	warm := NewWithStore(store, TagEvents)
	list, err := warm.Get(key)
	if err != nil {
		t.Fatalf("warmed cache missing key: %v", err)
	}
	if len(list.Events) != 1 || list.Events[0].ID != "e1" {
		t.Fatalf("unexpected warmed payload: %+v", list)
	}
}

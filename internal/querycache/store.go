package querycache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"campusdesk/models"
)

// SQLiteStore persists cached result sets so a restarted client warms from
// its last known views instead of starting cold.
type SQLiteStore struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS cached_sets (
	tag         TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	payload     TEXT NOT NULL,
	stored_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (tag, fingerprint)
);
`

// OpenSQLiteStore opens (creating if needed) the cache database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// The cache has exactly one writer; a single connection avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply cache schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save upserts one result set.
func (s *SQLiteStore) Save(key Key, list models.EventList) error {
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal result set: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO cached_sets (tag, fingerprint, payload, stored_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(tag, fingerprint) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at`,
		key.Tag, key.Fingerprint, string(payload), time.Now().UTC(),
	)
	return err
}

// Delete removes one result set.
func (s *SQLiteStore) Delete(key Key) error {
	_, err := s.db.Exec(`DELETE FROM cached_sets WHERE tag = ? AND fingerprint = ?`, key.Tag, key.Fingerprint)
	return err
}

// DeleteTag removes every result set under tag.
func (s *SQLiteStore) DeleteTag(tag string) error {
	_, err := s.db.Exec(`DELETE FROM cached_sets WHERE tag = ?`, tag)
	return err
}

// LoadTag reads every persisted result set under tag. Rows whose payload no
// longer decodes are skipped rather than failing the whole warm.
func (s *SQLiteStore) LoadTag(tag string) (map[Key]models.EventList, error) {
	rows, err := s.db.Query(`SELECT fingerprint, payload FROM cached_sets WHERE tag = ?`, tag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Key]models.EventList)
	for rows.Next() {
		var fp, payload string
		if err := rows.Scan(&fp, &payload); err != nil {
			return nil, err
		}
		list, err := DecodeResultSet([]byte(payload))
		if err != nil {
			continue
		}
		out[Key{Tag: tag, Fingerprint: fp}] = list
	}
	return out, rows.Err()
}

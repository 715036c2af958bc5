package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var DebugLog func(string, ...interface{})

// Entry is the last successful response for one URL.
type Entry struct {
	URL       string
	ETag      string
	Body      []byte
	FetchedAt time.Time
}

// Store keeps remote list bodies keyed by URL so unchanged lists can be
// revalidated with If-None-Match instead of downloaded again.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("could not create directory for cache: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("could not open cache: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to cache (check permissions): %w", err)
	}

	// remote sources are fetched concurrently; one connection serializes
	// writers without SQLITE_BUSY retries
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	q := `
	CREATE TABLE IF NOT EXISTS responses (
		url TEXT PRIMARY KEY,
		etag TEXT NOT NULL,
		body BLOB NOT NULL,
		fetched_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(q); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not init cache tables: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached entry for url. ok is false when nothing is cached.
func (s *Store) Get(url string) (Entry, bool, error) {
	e := Entry{URL: url}
	var fetched int64
	err := s.db.QueryRow("SELECT etag, body, fetched_at FROM responses WHERE url = ?", url).
		Scan(&e.ETag, &e.Body, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e.FetchedAt = time.Unix(fetched, 0)
	return e, true, nil
}

// Put stores a response. Responses without an ETag cannot be revalidated
// and are not stored.
func (s *Store) Put(url, etag string, body []byte) error {
	if etag == "" {
		return nil
	}

	_, err := s.db.Exec(`
	INSERT INTO responses (url, etag, body, fetched_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		etag = excluded.etag,
		body = excluded.body,
		fetched_at = excluded.fetched_at;
	`, url, etag, body, time.Now().Unix())
	if err != nil {
		return err
	}

	if DebugLog != nil {
		DebugLog("cached %d bytes for %s (etag %s)", len(body), url, etag)
	}
	return nil
}

package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scipunch/rssreader/feed"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore persists one JSON encoded feed per source row
type SQLiteStore struct {
	db *sql.DB
}

// Stats contains cache statistics
type Stats struct {
	Feeds       int
	Items       int
	OldestEntry time.Time
}

// NewSQLiteStore initializes the cache database at the given path
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	s, err := NewSQLiteStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreFromDB uses an already opened database connection
func NewSQLiteStoreFromDB(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads every cached feed
func (s *SQLiteStore) Load(ctx context.Context) (Cache, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source, feed_data FROM feed_cache")
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	defer rows.Close()

	c := New()
	for rows.Next() {
		var source string
		var data []byte
		if err := rows.Scan(&source, &data); err != nil {
			return nil, fmt.Errorf("failed to scan cache row: %w", err)
		}

		var f feed.Feed
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to decode cached feed '%s': %w", source, err)
		}
		c[source] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	return c, nil
}

// Save upserts every entry of c in one transaction. Rows for sources missing
// from c are left untouched.
func (s *SQLiteStore) Save(ctx context.Context, c Cache) error {
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cache transaction: %w", err)
	}
	defer tx.Rollback()

	for source, f := range c {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("failed to encode feed '%s': %w", source, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO feed_cache (source, feed_data, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(source) DO UPDATE SET feed_data = excluded.feed_data, updated_at = excluded.updated_at
		`, source, data, now, now)
		if err != nil {
			return fmt.Errorf("failed to write feed '%s': %w", source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache: %w", err)
	}
	return nil
}

// Clear removes all cache entries
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM feed_cache"); err != nil {
		return fmt.Errorf("failed to clear feed cache: %w", err)
	}
	return nil
}

// Stats returns cache statistics
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	c, err := s.Load(ctx)
	if err != nil {
		return stats, err
	}
	stats.Feeds = len(c)
	for _, f := range c {
		stats.Items += len(f.Items)
	}

	var oldestUnix sql.NullInt64
	err = s.db.QueryRowContext(ctx, "SELECT MIN(created_at) FROM feed_cache").Scan(&oldestUnix)
	if err != nil && err != sql.ErrNoRows {
		return stats, err
	}
	if oldestUnix.Valid && oldestUnix.Int64 > 0 {
		stats.OldestEntry = time.Unix(oldestUnix.Int64, 0)
	}

	return stats, nil
}

// Close closes the cache database
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

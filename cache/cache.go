// Package cache keeps the last known Feed for every source and persists it
// between runs.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scipunch/rssreader/feed"
)

// Backend names a persistence implementation
type Backend = string

var (
	JSON   = Backend("json")
	SQLite = Backend("sqlite")
	Bolt   = Backend("bolt")
)

// Cache maps a feed source (usually its URL) to the last known Feed
type Cache map[string]feed.Feed

// New returns an empty cache
func New() Cache {
	return make(Cache)
}

// Lookup returns a copy of the feed cached for source.
// asOf is accepted for callers that track freshness but does not filter
// anything: stale entries are returned as well.
func (c Cache) Lookup(source string, asOf time.Time) (feed.Feed, bool) {
	f, ok := c[source]
	if !ok {
		return feed.Feed{}, false
	}
	return f.Clone(), true
}

// Update inserts or replaces the entry for source. Item lists are not merged
// here, callers pass the already merged feed.
func (c Cache) Update(source string, f feed.Feed) {
	c[source] = f
}

// Store loads and saves a Cache
type Store interface {
	Load(ctx context.Context) (Cache, error)
	Save(ctx context.Context, c Cache) error
	Clear() error
	Close() error
}

// Open returns the store for backend at path
func Open(backend Backend, path string) (Store, error) {
	switch backend {
	case JSON, "":
		return NewFileStore(path), nil
	case SQLite:
		return NewSQLiteStore(path)
	case Bolt:
		return NewBoltStore(path)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", backend)
	}
}

// DefaultPath returns the default cache location for backend
func DefaultPath(backend Backend) string {
	name := "cache.json"
	switch backend {
	case SQLite:
		name = "cache.db"
	case Bolt:
		name = "cache.bolt"
	}

	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return name // Fallback to current directory
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "rssreader", name)
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/scipunch/rssreader/feed"
)

var feedsBucket = []byte("feeds")

// BoltStore keeps one JSON encoded feed per source in a bbolt bucket
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the bbolt file at path
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database at '%s': %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load(ctx context.Context) (Cache, error) {
	c := New()
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(feedsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var f feed.Feed
			if err := json.Unmarshal(v, &f); err != nil {
				return fmt.Errorf("failed to decode cached feed '%s': %w", k, err)
			}
			c[string(k)] = f
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Save replaces the stored cache with c in a single transaction
func (s *BoltStore) Save(ctx context.Context, c Cache) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(feedsBucket) != nil {
			if err := tx.DeleteBucket(feedsBucket); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(feedsBucket)
		if err != nil {
			return err
		}
		for source, f := range c {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := json.Marshal(f)
			if err != nil {
				return fmt.Errorf("failed to encode feed '%s': %w", source, err)
			}
			if err := b.Put([]byte(source), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(feedsBucket) == nil {
			return nil
		}
		return tx.DeleteBucket(feedsBucket)
	})
	if err != nil {
		return fmt.Errorf("failed to clear feed cache: %w", err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

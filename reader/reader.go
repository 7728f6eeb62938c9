// Package reader runs one read of a source: fetch or look up the feed, merge
// it with the cache, filter, limit, and fill in image bytes when needed.
package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scipunch/rssreader/cache"
	"github.com/scipunch/rssreader/feed"
	"github.com/scipunch/rssreader/fetcher"
	"github.com/scipunch/rssreader/filter"
)

// ErrNotCached is returned in date mode when the cache holds no items of the
// requested day for the source
var ErrNotCached = errors.New("no cached news for the requested date")

const imageWorkers = 4

// FeedParser turns raw RSS bytes into a feed
type FeedParser interface {
	ParseBytes(raw []byte) (feed.Feed, error)
}

// Options select what a single Run produces
type Options struct {
	Source string
	// Limit caps the number of returned items. Nil returns all of them.
	Limit *int
	// Date switches to offline mode: only cached items published on this
	// UTC day are returned.
	Date        *time.Time
	NeedImages  bool
	FilterNames []string
}

type Reader struct {
	store   cache.Store
	feeds   fetcher.FeedFetcher
	images  fetcher.ImageFetcher
	parser  FeedParser
	filters *filter.FilterPipeline
	logger  *zap.Logger
}

// New creates a reader. filters and logger may be nil.
func New(
	store cache.Store,
	feeds fetcher.FeedFetcher,
	images fetcher.ImageFetcher,
	parser FeedParser,
	filters *filter.FilterPipeline,
	logger *zap.Logger,
) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		store:   store,
		feeds:   feeds,
		images:  images,
		parser:  parser,
		filters: filters,
		logger:  logger,
	}
}

// Run produces the feed to print for opts.Source
func (r *Reader) Run(ctx context.Context, opts Options) (feed.Feed, error) {
	c, err := r.store.Load(ctx)
	if err != nil {
		return feed.Feed{}, fmt.Errorf("failed to load cache: %w", err)
	}

	var f feed.Feed
	if opts.Date != nil {
		f, err = r.fromCache(c, opts.Source, *opts.Date)
	} else {
		f, err = r.refresh(ctx, c, opts.Source)
	}
	if err != nil {
		return feed.Feed{}, err
	}

	if r.filters != nil && len(opts.FilterNames) > 0 {
		if err := r.filters.Validate(opts.FilterNames); err != nil {
			return feed.Feed{}, err
		}
		var reasons []string
		f.Items, reasons = r.filters.Apply(f.Items, opts.FilterNames)
		if len(reasons) > 0 {
			r.logger.Debug("items filtered out",
				zap.String("source", opts.Source),
				zap.Strings("reasons", reasons))
		}
	}

	f.SortByDate()
	if opts.Limit != nil {
		f.Limit(*opts.Limit)
	}

	if opts.NeedImages {
		if err := r.attachImages(ctx, c, opts.Source, &f); err != nil {
			return feed.Feed{}, err
		}
	}
	return f, nil
}

func (r *Reader) fromCache(c cache.Cache, source string, day time.Time) (feed.Feed, error) {
	cached, ok := c.Lookup(source, day)
	if !ok {
		return feed.Feed{}, fmt.Errorf("%w: %s", ErrNotCached, source)
	}

	y, m, d := day.Date()
	items := cached.Items[:0]
	for _, item := range cached.Items {
		iy, im, id := item.PubDate.UTC().Date()
		if iy == y && im == m && id == d {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return feed.Feed{}, fmt.Errorf("%w: %s on %s", ErrNotCached, source, day.Format("2006-01-02"))
	}
	cached.Items = items
	r.logger.Info("using cached news",
		zap.String("source", source),
		zap.Int("items", len(items)))
	return cached, nil
}

func (r *Reader) refresh(ctx context.Context, c cache.Cache, source string) (feed.Feed, error) {
	raw, err := r.feeds.FetchFeed(ctx, source)
	if err != nil {
		return feed.Feed{}, fmt.Errorf("failed to fetch '%s': %w", source, err)
	}
	fresh, err := r.parser.ParseBytes(raw)
	if err != nil {
		return feed.Feed{}, fmt.Errorf("failed to parse '%s': %w", source, err)
	}
	r.logger.Info("feed fetched",
		zap.String("source", source),
		zap.Int("items", len(fresh.Items)))

	merged := fresh
	if cached, ok := c.Lookup(source, time.Now()); ok {
		merged.Items = feed.MergeItems(cached.Items, fresh.Items)
		r.logger.Debug("merged with cache",
			zap.Int("cached", len(cached.Items)),
			zap.Int("total", len(merged.Items)))
	} else {
		merged.Items = feed.MergeItems(nil, fresh.Items)
	}
	merged.SortByDate()

	if err := r.save(ctx, c, source, merged); err != nil {
		return feed.Feed{}, err
	}
	return merged.Clone(), nil
}

// attachImages fetches every image of f not cached yet and writes the
// updated items back. A failed image is logged and left out; the HTML then
// keeps the remote URL and PDF rendering skips it.
func (r *Reader) attachImages(ctx context.Context, c cache.Cache, source string, f *feed.Feed) error {
	missing := f.MissingImages()
	if len(missing) == 0 {
		return nil
	}

	var mu sync.Mutex
	fetched := make(map[string][]byte, len(missing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageWorkers)
	for _, url := range missing {
		g.Go(func() error {
			data, err := r.images.FetchImage(gctx, url)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn("failed to fetch image", zap.String("url", url), zap.Error(err))
				return nil
			}
			mu.Lock()
			fetched[url] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("image download interrupted: %w", err)
	}
	r.logger.Info("images fetched",
		zap.Int("requested", len(missing)),
		zap.Int("fetched", len(fetched)))
	if len(fetched) == 0 {
		return nil
	}

	for i := range f.Items {
		for _, l := range f.Items[i].ImageLinks() {
			if data, ok := fetched[l.URL]; ok {
				f.Items[i].SetImage(l.URL, data)
			}
		}
	}

	stored, ok := c.Lookup(source, time.Now())
	if !ok {
		stored = feed.Feed{Title: f.Title, Link: f.Link, Description: f.Description}
	}
	stored.Items = feed.MergeItems(f.Clone().Items, stored.Items)
	stored.SortByDate()
	return r.save(ctx, c, source, stored)
}

func (r *Reader) save(ctx context.Context, c cache.Cache, source string, f feed.Feed) error {
	c.Update(source, f)
	if err := r.store.Save(ctx, c); err != nil {
		return fmt.Errorf("failed to save cache: %w", err)
	}
	return nil
}

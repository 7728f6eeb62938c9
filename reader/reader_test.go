package reader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scipunch/rssreader/cache"
	"github.com/scipunch/rssreader/config"
	"github.com/scipunch/rssreader/feed"
	"github.com/scipunch/rssreader/filter"
	"github.com/scipunch/rssreader/parser"
)

const source = "https://example.com/rss"

type rssItem struct {
	title, date, description string
}

func rss(items ...rssItem) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel>`)
	b.WriteString(`<title>Example</title><link>https://example.com/</link><description>Example feed</description>`)
	for _, it := range items {
		fmt.Fprintf(&b, `<item><title>%s</title><link>https://example.com/%s</link><description><![CDATA[%s]]></description><pubDate>%s</pubDate></item>`,
			it.title, it.title, it.description, it.date)
	}
	b.WriteString(`</channel></rss>`)
	return []byte(b.String())
}

type fakeFeeds struct {
	body  []byte
	err   error
	calls int
}

func (f *fakeFeeds) FetchFeed(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	return f.body, f.err
}

type fakeImages struct {
	mu     sync.Mutex
	images map[string][]byte
	calls  map[string]int
}

func newFakeImages(images map[string][]byte) *fakeImages {
	return &fakeImages{images: images, calls: map[string]int{}}
}

func (f *fakeImages) FetchImage(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	data, ok := f.images[url]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return data, nil
}

func newReader(t *testing.T, feeds *fakeFeeds, images *fakeImages, filters *filter.FilterPipeline) (*Reader, cache.Store) {
	t.Helper()
	store := cache.NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	if images == nil {
		images = newFakeImages(nil)
	}
	return New(store, feeds, images, parser.New(), filters, nil), store
}

func titles(f feed.Feed) []string {
	out := make([]string, 0, len(f.Items))
	for _, item := range f.Items {
		out = append(out, item.Title)
	}
	return out
}

func TestRunFetchesAndCaches(t *testing.T) {
	ctx := context.Background()
	feeds := &fakeFeeds{body: rss(
		rssItem{"old", "Sun, 02 Jan 2022 07:11:23 +0000", "first"},
		rssItem{"new", "Mon, 03 Jan 2022 07:11:23 +0000", "second"},
	)}
	r, store := newReader(t, feeds, nil, nil)

	f, err := r.Run(ctx, Options{Source: source})
	require.NoError(t, err)
	assert.Equal(t, "Example", f.Title)
	assert.Equal(t, []string{"new", "old"}, titles(f))

	c, err := store.Load(ctx)
	require.NoError(t, err)
	cached, ok := c.Lookup(source, time.Now())
	require.True(t, ok)
	assert.Equal(t, []string{"new", "old"}, titles(cached))
}

func TestRunMergesWithCache(t *testing.T) {
	ctx := context.Background()
	feeds := &fakeFeeds{body: rss(
		rssItem{"a", "Sun, 02 Jan 2022 07:11:23 +0000", "a"},
		rssItem{"b", "Mon, 03 Jan 2022 07:11:23 +0000", "b"},
	)}
	r, store := newReader(t, feeds, nil, nil)

	_, err := r.Run(ctx, Options{Source: source})
	require.NoError(t, err)

	// b dropped off the remote feed, c appeared
	feeds.body = rss(
		rssItem{"c", "Tue, 04 Jan 2022 07:11:23 +0000", "c"},
		rssItem{"a", "Sun, 02 Jan 2022 07:11:23 +0000", "a"},
	)
	f, err := r.Run(ctx, Options{Source: source})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, titles(f))

	c, err := store.Load(ctx)
	require.NoError(t, err)
	cached, _ := c.Lookup(source, time.Now())
	assert.Len(t, cached.Items, 3)
}

func TestRunLimit(t *testing.T) {
	feeds := &fakeFeeds{body: rss(
		rssItem{"one", "Sun, 02 Jan 2022 07:11:23 +0000", "1"},
		rssItem{"three", "Tue, 04 Jan 2022 07:11:23 +0000", "3"},
		rssItem{"two", "Mon, 03 Jan 2022 07:11:23 +0000", "2"},
	)}
	r, store := newReader(t, feeds, nil, nil)

	tests := []struct {
		name  string
		limit *int
		want  []string
	}{
		{"no limit", nil, []string{"three", "two", "one"}},
		{"limit 2", intPtr(2), []string{"three", "two"}},
		{"over limit", intPtr(10), []string{"three", "two", "one"}},
		{"zero", intPtr(0), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := r.Run(context.Background(), Options{Source: source, Limit: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(f))
		})
	}

	// limiting the output never shrinks the cache
	c, err := store.Load(context.Background())
	require.NoError(t, err)
	cached, _ := c.Lookup(source, time.Now())
	assert.Len(t, cached.Items, 3)
}

func TestRunDateUsesCacheOnly(t *testing.T) {
	ctx := context.Background()
	feeds := &fakeFeeds{body: rss(
		rssItem{"late", "Sun, 02 Jan 2022 23:30:00 -0300", "late"}, // 3 Jan UTC
		rssItem{"early", "Sun, 02 Jan 2022 07:11:23 +0000", "early"},
		rssItem{"other", "Sat, 01 Jan 2022 07:11:23 +0000", "other"},
	)}
	r, _ := newReader(t, feeds, nil, nil)
	_, err := r.Run(ctx, Options{Source: source})
	require.NoError(t, err)

	feeds.err = errors.New("network must not be used")
	day := time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC)
	f, err := r.Run(ctx, Options{Source: source, Date: &day})
	require.NoError(t, err)
	assert.Equal(t, []string{"early"}, titles(f))
	assert.Equal(t, 1, feeds.calls)

	missing := time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)
	_, err = r.Run(ctx, Options{Source: source, Date: &missing})
	assert.ErrorIs(t, err, ErrNotCached)

	_, err = r.Run(ctx, Options{Source: "https://unknown.example/rss", Date: &day})
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestRunFilters(t *testing.T) {
	filters, err := filter.NewFilterPipeline(map[string]config.Filter{
		"no_ads": {ExcludePatterns: []string{"(?i)sponsored"}},
	})
	require.NoError(t, err)

	feeds := &fakeFeeds{body: rss(
		rssItem{"news", "Sun, 02 Jan 2022 07:11:23 +0000", "real news"},
		rssItem{"ad", "Mon, 03 Jan 2022 07:11:23 +0000", "Sponsored content"},
	)}
	r, store := newReader(t, feeds, nil, filters)

	f, err := r.Run(context.Background(), Options{Source: source, FilterNames: []string{"no_ads"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"news"}, titles(f))

	// the cache keeps unfiltered items
	c, err := store.Load(context.Background())
	require.NoError(t, err)
	cached, _ := c.Lookup(source, time.Now())
	assert.Len(t, cached.Items, 2)

	_, err = r.Run(context.Background(), Options{Source: source, FilterNames: []string{"missing"}})
	assert.Error(t, err)
}

func TestRunImages(t *testing.T) {
	ctx := context.Background()
	logo := "https://example.com/logo.png"
	broken := "https://example.com/broken.png"
	feeds := &fakeFeeds{body: rss(
		rssItem{"a", "Sun, 02 Jan 2022 07:11:23 +0000", `<img src="` + logo + `">A`},
		rssItem{"b", "Mon, 03 Jan 2022 07:11:23 +0000", `<img src="` + logo + `"><img src="` + broken + `">B`},
	)}
	images := newFakeImages(map[string][]byte{logo: []byte("PNG")})
	r, store := newReader(t, feeds, images, nil)

	f, err := r.Run(ctx, Options{Source: source, NeedImages: true})
	require.NoError(t, err)
	require.Len(t, f.Items, 2)
	for _, item := range f.Items {
		data, ok := item.Image(logo)
		assert.True(t, ok, item.Title)
		assert.Equal(t, []byte("PNG"), data)
	}
	_, ok := f.Items[0].Image(broken)
	assert.False(t, ok)
	assert.Equal(t, 1, images.calls[logo])

	c, err := store.Load(ctx)
	require.NoError(t, err)
	cached, _ := c.Lookup(source, time.Now())
	assert.Equal(t, []byte("PNG"), cached.ImageSet()[logo])

	// cached bytes are reused, only the broken image is retried
	_, err = r.Run(ctx, Options{Source: source, NeedImages: true})
	require.NoError(t, err)
	assert.Equal(t, 1, images.calls[logo])
	assert.Equal(t, 2, images.calls[broken])
}

func TestRunErrors(t *testing.T) {
	r, _ := newReader(t, &fakeFeeds{err: errors.New("connection refused")}, nil, nil)
	_, err := r.Run(context.Background(), Options{Source: source})
	assert.ErrorContains(t, err, "connection refused")

	r, _ = newReader(t, &fakeFeeds{body: []byte("not a feed")}, nil, nil)
	_, err = r.Run(context.Background(), Options{Source: source})
	var formatErr *feed.FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func intPtr(n int) *int {
	return &n
}

// Package feed holds the normalized representation of an RSS channel and the
// operations that reconcile item lists across runs.
package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

// DateLayout is the RFC 822 style layout with a numeric zone used by every
// output format.
const DateLayout = time.RFC1123Z

// Kind classifies a URL referenced by an item
type Kind string

const (
	KindLink  Kind = "link"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Feed represents a channel and its items
type Feed struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Items       []Item `json:"items"`
}

// Item represents a single entry of a feed.
// DescriptionRaw keeps the original markup for HTML rendering, Description is
// the sanitized text with numbered references into Links.
type Item struct {
	Title          string            `json:"title"`
	PubDate        time.Time         `json:"pubDate"`
	Link           string            `json:"link"`
	Description    string            `json:"description"`
	DescriptionRaw string            `json:"description_raw"`
	Links          []Link            `json:"links"`
	Images         map[string][]byte `json:"images,omitempty"`
}

// Link is a URL referenced by an item together with its kind.
// It serializes as a two element array: [url, kind].
type Link struct {
	URL  string
	Kind Kind
}

func (l Link) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([2]string{l.URL, string(l.Kind)}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (l *Link) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("link must be a [url, kind] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("link must have 2 elements, got %d", len(pair))
	}
	l.URL = pair[0]
	l.Kind = Kind(pair[1])
	return nil
}

// Identity is the tuple two items are compared by during merge
type Identity struct {
	Title       string
	Link        string
	Description string
	PubDate     string
}

// Identity returns the merge identity of the item. Dates are compared as
// instants, so the zone the date was recorded in does not matter.
func (i Item) Identity() Identity {
	return Identity{
		Title:       i.Title,
		Link:        i.Link,
		Description: i.Description,
		PubDate:     i.PubDate.UTC().Format(time.RFC3339Nano),
	}
}

// Image returns the bytes stored for url and whether they were fetched
func (i Item) Image(url string) ([]byte, bool) {
	data, ok := i.Images[url]
	return data, ok
}

// SetImage stores fetched image bytes for url
func (i *Item) SetImage(url string, data []byte) {
	if i.Images == nil {
		i.Images = make(map[string][]byte)
	}
	i.Images[url] = data
}

// ImageLinks returns links that are rendered as images in HTML output
func (i Item) ImageLinks() []Link {
	var out []Link
	for _, l := range i.Links {
		if l.Kind != KindLink {
			out = append(out, l)
		}
	}
	return out
}

// Clone returns a deep copy of the item
func (i Item) Clone() Item {
	c := i
	c.Links = slices.Clone(i.Links)
	if i.Images != nil {
		c.Images = make(map[string][]byte, len(i.Images))
		for url, data := range i.Images {
			c.Images[url] = slices.Clone(data)
		}
	}
	return c
}

// Clone returns a deep copy of the feed
func (f Feed) Clone() Feed {
	c := f
	if f.Items != nil {
		c.Items = make([]Item, len(f.Items))
		for i, item := range f.Items {
			c.Items[i] = item.Clone()
		}
	}
	return c
}

// Limit truncates the items to at most n, keeping their order.
// A negative n or one not smaller than the item count leaves the feed as is.
func (f *Feed) Limit(n int) {
	if n < 0 || n >= len(f.Items) {
		return
	}
	f.Items = f.Items[:n]
}

// SortByDate orders items newest first. Items with equal dates keep their
// relative order and items without a date end up last.
func (f *Feed) SortByDate() {
	slices.SortStableFunc(f.Items, func(a, b Item) int {
		return b.PubDate.Compare(a.PubDate)
	})
}

// MissingImages returns the distinct image URLs across all items that have no
// fetched bytes yet, in item order.
func (f Feed) MissingImages() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, item := range f.Items {
		for _, l := range item.ImageLinks() {
			if _, ok := item.Images[l.URL]; ok {
				continue
			}
			if _, ok := seen[l.URL]; ok {
				continue
			}
			seen[l.URL] = struct{}{}
			out = append(out, l.URL)
		}
	}
	return out
}

// ImageSet merges every fetched image of the feed into one map
func (f Feed) ImageSet() map[string][]byte {
	out := make(map[string][]byte)
	for _, item := range f.Items {
		maps.Copy(out, item.Images)
	}
	return out
}

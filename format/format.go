// Package format renders a feed as plain text, JSON, HTML or PDF
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/scipunch/rssreader/feed"
)

// Formatter renders one feed. The feed is expected to be limited already.
type Formatter struct {
	feed   feed.Feed
	images map[string][]byte
}

// New creates a formatter for f
func New(f feed.Feed) *Formatter {
	return &Formatter{
		feed:   f,
		images: f.ImageSet(),
	}
}

// Text renders the feed as plain text
func (f *Formatter) Text() string {
	return Text(f.feed)
}

// JSON renders the feed as indented JSON
func (f *Formatter) JSON() (string, error) {
	return JSON(f.feed)
}

// CachedImage returns a reader over image bytes previously stored for url
func (f *Formatter) CachedImage(url string) (*bytes.Reader, error) {
	data, ok := f.images[url]
	if !ok {
		return nil, &feed.ImageLookupError{URL: url}
	}
	return bytes.NewReader(data), nil
}

// Text renders f as plain text: a feed header followed by every item with its
// numbered link list
func Text(f feed.Feed) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Feed: %s\n\n", f.Title)
	for _, item := range f.Items {
		fmt.Fprintf(&b, "Title: %s\nDate: %s\nLink: %s\n\n%s\n\n",
			item.Title, item.PubDate.Format(feed.DateLayout), item.Link, item.Description)

		if len(item.Links) == 0 {
			continue
		}
		b.WriteString("Links:\n")
		for i, l := range item.Links {
			fmt.Fprintf(&b, "[%d]: %s (%s)\n", i+1, l.URL, l.Kind)
		}
	}

	return b.String()
}

type jsonFeed struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description"`
	Items       []jsonItem `json:"items"`
}

type jsonItem struct {
	Title       string      `json:"title"`
	PubDate     string      `json:"pubDate"`
	Link        string      `json:"link"`
	Description string      `json:"description"`
	Links       []feed.Link `json:"links"`
}

// JSON renders f with a one space indent. Item descriptions carry the raw
// markup. Non-ASCII characters are written as \u escapes.
func JSON(f feed.Feed) (string, error) {
	out := jsonFeed{
		Title:       f.Title,
		Link:        f.Link,
		Description: f.Description,
		Items:       make([]jsonItem, 0, len(f.Items)),
	}
	for _, item := range f.Items {
		links := item.Links
		if links == nil {
			links = []feed.Link{}
		}
		out.Items = append(out.Items, jsonItem{
			Title:       item.Title,
			PubDate:     item.PubDate.Format(feed.DateLayout),
			Link:        item.Link,
			Description: item.DescriptionRaw,
			Links:       links,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	if err := enc.Encode(out); err != nil {
		return "", fmt.Errorf("failed to encode feed as JSON: %w", err)
	}

	return asciiOnly(strings.TrimRight(buf.String(), "\n")), nil
}

// asciiOnly replaces every non-ASCII rune with its \u escape. It is only
// applied to encoded JSON, where such runes can only occur inside strings.
func asciiOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
			continue
		}
		fmt.Fprintf(&b, `\u%04x`, r)
	}
	return b.String()
}

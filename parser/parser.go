// Package parser converts raw RSS markup into a normalized feed.Feed
package parser

import (
	"bytes"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/scipunch/rssreader/feed"
	"github.com/scipunch/rssreader/parser/links"
)

// Parser parses RSS documents using gofeed
type Parser struct {
	parser *gofeed.Parser
}

// New creates a new RSS parser
func New() *Parser {
	return &Parser{
		parser: gofeed.NewParser(),
	}
}

// Parse parses RSS 2.0 markup with a fresh Parser
func Parse(raw string) (feed.Feed, error) {
	return New().ParseBytes([]byte(raw))
}

// ParseBytes parses RSS 2.0 markup. Input without a recognizable channel/item
// structure fails with *feed.FormatError. Malformed item content never fails
// the whole parse: bad dates become the zero time and description markup is
// sanitized on a best effort basis.
func (p *Parser) ParseBytes(raw []byte) (feed.Feed, error) {
	var f feed.Feed

	if t := gofeed.DetectFeedType(bytes.NewReader(raw)); t != gofeed.FeedTypeRSS {
		return f, &feed.FormatError{Reason: "document is not an RSS feed"}
	}

	gofeedFeed, err := p.parser.Parse(bytes.NewReader(raw))
	if err != nil {
		return f, &feed.FormatError{Reason: "failed to parse RSS document", Err: err}
	}
	if gofeedFeed.Title == "" && gofeedFeed.Link == "" && gofeedFeed.Description == "" && len(gofeedFeed.Items) == 0 {
		return f, &feed.FormatError{Reason: "no channel or items found"}
	}

	// Convert gofeed.Feed to our Feed type
	f.Title = strings.TrimSpace(gofeedFeed.Title)
	f.Link = strings.TrimSpace(gofeedFeed.Link)
	f.Description = strings.TrimSpace(gofeedFeed.Description)
	f.Items = make([]feed.Item, 0, len(gofeedFeed.Items))

	for _, item := range gofeedFeed.Items {
		if item == nil {
			continue
		}
		f.Items = append(f.Items, convertItem(item))
	}

	return f, nil
}

func convertItem(src *gofeed.Item) feed.Item {
	item := feed.Item{
		Title:          strings.TrimSpace(src.Title),
		Link:           strings.TrimSpace(src.Link),
		DescriptionRaw: src.Description,
		PubDate:        pubDate(src),
	}

	item.Description, item.Links = links.Extract(item.DescriptionRaw, item.Link)

	for _, enc := range src.Enclosures {
		if enc == nil || strings.TrimSpace(enc.URL) == "" {
			continue
		}
		link := links.LinkForEnclosure(enc.URL, enc.Type)
		if !lo.ContainsBy(item.Links, func(l feed.Link) bool { return l.URL == link.URL }) {
			item.Links = append(item.Links, link)
		}
	}

	return item
}

// pubDate returns the publication date in UTC. Items without a parsable date
// get the zero time so they sort after every dated item.
func pubDate(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	return time.Time{}
}

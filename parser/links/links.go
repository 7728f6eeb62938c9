// Package links turns item description markup into display text with numbered
// references and the ordered list of URLs those references point to.
package links

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scipunch/rssreader/feed"
)

// blockElements separate their content from surrounding text
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "table": true, "blockquote": true, "pre": true, "hr": true,
}

// mediaElements are replaced by a reference in the text
var mediaElements = map[string]feed.Kind{
	"img":       feed.KindImage,
	"audio":     feed.KindAudio,
	"video":     feed.KindVideo,
	"source":    feed.KindLink,
	"enclosure": feed.KindLink,
	"embed":     feed.KindLink,
	"iframe":    feed.KindLink,
}

// extraction is the state of a single Extract call.
// index maps a URL to its 1-based reference number.
type extraction struct {
	text  strings.Builder
	links []feed.Link
	index map[string]int
}

func newExtraction() *extraction {
	return &extraction{index: make(map[string]int)}
}

// ref returns the reference number of url, registering it with kind on first
// sight. The kind of an already registered URL is never changed.
func (e *extraction) ref(url string, kind feed.Kind) int {
	if n, ok := e.index[url]; ok {
		return n
	}
	e.links = append(e.links, feed.Link{URL: url, Kind: kind})
	n := len(e.links)
	e.index[url] = n
	return n
}

// Extract renders an HTML fragment as plain text. Anchors are followed by
// "[n]" and media elements are replaced by "[image n]" style references, n
// being the position of the URL in the returned list. A non-empty primary link
// is always reference 1.
func Extract(fragment, primary string) (string, []feed.Link) {
	e := newExtraction()
	if primary != "" {
		e.ref(primary, feed.KindLink)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment), e.links
	}

	e.walk(doc.Find("body"), "")
	return collapse(e.text.String()), e.links
}

// walk renders the children of sel. parent is the tag of the closest media
// element, used to classify nested <source> tags.
func (e *extraction) walk(sel *goquery.Selection, parent string) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		name := goquery.NodeName(node)
		switch {
		case name == "#text":
			e.text.WriteString(node.Text())
		case name == "a":
			e.anchor(node, parent)
		case mediaElements[name] != "":
			e.media(node, name, parent)
		case name == "script" || name == "style" || name == "#comment":
		default:
			if blockElements[name] {
				e.text.WriteByte(' ')
			}
			e.walk(node, parent)
			if blockElements[name] {
				e.text.WriteByte(' ')
			}
		}
	})
}

func (e *extraction) anchor(node *goquery.Selection, parent string) {
	href := strings.TrimSpace(node.AttrOr("href", ""))
	if href == "" {
		e.walk(node, parent)
		return
	}
	n := e.ref(href, feed.KindLink)
	e.walk(node, parent)
	fmt.Fprintf(&e.text, "[%d]", n)
}

func (e *extraction) media(node *goquery.Selection, name, parent string) {
	kind := Classify(name, node.AttrOr("type", ""), parent)
	url := mediaURL(node)
	if url != "" {
		n := e.ref(url, kind)
		alt := strings.TrimSpace(node.AttrOr("alt", ""))
		if alt != "" {
			fmt.Fprintf(&e.text, "[%s %d: %s]", kind, n, alt)
		} else {
			fmt.Fprintf(&e.text, "[%s %d]", kind, n)
		}
	}
	if name == "audio" || name == "video" {
		e.walk(node, name)
	}
}

func mediaURL(node *goquery.Selection) string {
	for _, attr := range []string{"src", "url", "href"} {
		if v := strings.TrimSpace(node.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

// Classify picks the kind of a media element from its MIME type first, then
// from its tag or the tag of the enclosing audio/video element.
func Classify(tag, mimeType, parent string) feed.Kind {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mimeType, "audio/"):
		return feed.KindAudio
	case strings.HasPrefix(mimeType, "video/"):
		return feed.KindVideo
	case strings.HasPrefix(mimeType, "image/"):
		return feed.KindImage
	}
	if kind := mediaElements[tag]; kind != feed.KindLink && kind != "" {
		return kind
	}
	if kind := mediaElements[parent]; kind != "" {
		return kind
	}
	return feed.KindLink
}

// LinkForEnclosure classifies an RSS <enclosure> element
func LinkForEnclosure(url, mimeType string) feed.Link {
	return feed.Link{URL: strings.TrimSpace(url), Kind: Classify("enclosure", mimeType, "")}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

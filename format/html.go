package format

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/scipunch/rssreader/feed"
)

const doctype = "<!DOCTYPE html>\n"

// HTML renders the feed as a self-contained HTML document. Images reference
// their original URLs; the PDF renderer serves them from the cached bytes.
func (f *Formatter) HTML() ([]byte, error) {
	root := element("html")
	head := element("head")
	head.AppendChild(element("meta", attr("charset", "utf-8")))
	head.AppendChild(withText(element("title"), f.feed.Title))
	root.AppendChild(head)

	body := element("body")
	body.AppendChild(withText(element("h1"), f.feed.Title))
	body.AppendChild(withFragment(element("div"), f.feed.Description))

	for _, item := range f.feed.Items {
		body.AppendChild(withText(element("h2"), item.Title))
		body.AppendChild(withText(element("p"), item.PubDate.Format(feed.DateLayout)))
		body.AppendChild(withFragment(element("div"), item.DescriptionRaw))

		list := element("ol")
		for _, l := range item.Links {
			li := element("li")
			li.AppendChild(linkNode(l))
			list.AppendChild(li)
		}
		body.AppendChild(list)
	}
	root.AppendChild(body)

	var buf bytes.Buffer
	buf.WriteString(doctype)
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}
	return buf.Bytes(), nil
}

// linkNode renders a plain link as an anchor and any media as a fixed size
// image. Attributes are kept in alphabetical order.
func linkNode(l feed.Link) *html.Node {
	if l.Kind == feed.KindLink {
		return withText(element("a", attr("href", l.URL)), string(l.Kind))
	}
	return element("img",
		attr("height", "100"),
		attr("src", l.URL),
		attr("width", "160"),
	)
}

func element(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func withText(n *html.Node, text string) *html.Node {
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}

// withFragment parses markup in the context of n and appends the result.
// Markup that does not parse is appended as text.
func withFragment(n *html.Node, markup string) *html.Node {
	if markup == "" {
		return n
	}
	parent := element(n.Data)
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return withText(n, markup)
	}
	for _, child := range nodes {
		n.AppendChild(child)
	}
	return n
}

// Package filter drops feed items that do not match per-source rules
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/scipunch/rssreader/config"
	"github.com/scipunch/rssreader/feed"
)

// FilterPipeline applies a series of named filters to feed items
type FilterPipeline struct {
	filters map[string]*CompiledFilter
}

// CompiledFilter contains compiled regex patterns for efficient matching
type CompiledFilter struct {
	config          config.Filter
	excludePatterns []*regexp.Regexp
}

// NewFilterPipeline compiles the named filters. An invalid exclude pattern
// is a configuration error.
func NewFilterPipeline(filtersConfig map[string]config.Filter) (*FilterPipeline, error) {
	compiled := make(map[string]*CompiledFilter, len(filtersConfig))

	for name, filterCfg := range filtersConfig {
		cf := &CompiledFilter{
			config:          filterCfg,
			excludePatterns: make([]*regexp.Regexp, 0, len(filterCfg.ExcludePatterns)),
		}

		for _, pattern := range filterCfg.ExcludePatterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q in filter '%s': %w", pattern, name, err)
			}
			cf.excludePatterns = append(cf.excludePatterns, re)
		}

		compiled[name] = cf
	}

	return &FilterPipeline{filters: compiled}, nil
}

// Validate reports the first filter name that is not defined
func (fp *FilterPipeline) Validate(filterNames []string) error {
	for _, name := range filterNames {
		if _, ok := fp.filters[name]; !ok {
			return fmt.Errorf("filter '%s' is not defined", name)
		}
	}
	return nil
}

// Apply returns the items passing every filter in filterNames, in their
// original order, and the rejection reason of every dropped item
func (fp *FilterPipeline) Apply(items []feed.Item, filterNames []string) ([]feed.Item, []string) {
	if len(filterNames) == 0 {
		return items, nil
	}

	kept := make([]feed.Item, 0, len(items))
	var reasons []string
	for _, item := range items {
		if ok, reason := fp.ShouldInclude(item, filterNames); ok {
			kept = append(kept, item)
		} else {
			reasons = append(reasons, reason)
		}
	}
	return kept, reasons
}

// ShouldInclude returns true if the item passes all filters in filterNames,
// applied in order. Otherwise the reason names the failing filter and rule.
// Undefined names are skipped; use Validate to catch them up front.
func (fp *FilterPipeline) ShouldInclude(item feed.Item, filterNames []string) (bool, string) {
	for _, filterName := range filterNames {
		filter, exists := fp.filters[filterName]
		if !exists {
			continue
		}

		if ok, reason := filter.check(item, filterName); !ok {
			return false, reason
		}
	}

	return true, ""
}

func (cf *CompiledFilter) check(item feed.Item, filterName string) (bool, string) {
	text := strings.TrimSpace(item.Title + " " + item.Description)

	if cf.config.MinLength > 0 && len([]rune(text)) < cf.config.MinLength {
		return false, filterName + ":min_length"
	}

	if cf.config.MinWords > 0 && countWords(text) < cf.config.MinWords {
		return false, filterName + ":min_words"
	}

	for i, pattern := range cf.excludePatterns {
		if pattern.MatchString(item.Title) || pattern.MatchString(item.Description) {
			return false, filterName + ":exclude_pattern[" + cf.config.ExcludePatterns[i] + "]"
		}
	}

	if cf.config.RequireParagraphs && countParagraphs(item.DescriptionRaw) < 2 {
		return false, filterName + ":require_paragraphs"
	}

	return true, ""
}

// countWords counts runs of letters and digits
func countWords(text string) int {
	words := 0
	inWord := false

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if !inWord {
				words++
				inWord = true
			}
		} else {
			inWord = false
		}
	}

	return words
}

// countParagraphs counts the non-empty blocks of a description. Markup is
// split on paragraph and line break elements, plain text on newlines.
func countParagraphs(raw string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return countLines(raw)
	}

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return countLines(doc.Find("body").Text())
}

func countLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

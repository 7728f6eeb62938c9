package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "rssreader/1.0"
	maxSnippetLen    = 256
)

// Options configures the HTTP client
type Options struct {
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
}

// HTTPFetcher fetches feeds and images over HTTP. Local files are read
// directly.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates a new fetcher
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(opts.RetryCount).
		SetHeader("User-Agent", userAgent)

	return &HTTPFetcher{client: client}
}

// FetchFeed returns the raw document of source. Sources may be http(s) URLs,
// file:// URLs or plain file paths.
func (f *HTTPFetcher) FetchFeed(ctx context.Context, source string) ([]byte, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// No scheme or a Windows drive letter
		return readFile(source)
	}

	switch u.Scheme {
	case "file":
		return readFile(u.Path)
	case "http", "https":
		return f.get(ctx, source, "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.1")
	default:
		return nil, fmt.Errorf("unsupported feed source scheme: %s", u.Scheme)
	}
}

// FetchImage returns the bytes behind an image URL
func (f *HTTPFetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	return f.get(ctx, imageURL, "image/*")
}

func (f *HTTPFetcher) get(ctx context.Context, target, accept string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		Get(target)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s returned status %d body: %s", target, resp.StatusCode(), snippet(resp.Body()))
	}
	return resp.Body(), nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed file: %w", err)
	}
	return data, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "<empty>"
	}
	if len(s) > maxSnippetLen {
		return s[:maxSnippetLen] + "..."
	}
	return s
}

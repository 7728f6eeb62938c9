// Package fetcher retrieves raw feed documents and image bytes
package fetcher

import "context"

// FeedFetcher retrieves the raw markup of a feed source
type FeedFetcher interface {
	FetchFeed(ctx context.Context, source string) ([]byte, error)
}

// ImageFetcher retrieves the bytes of an image referenced by a feed item
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

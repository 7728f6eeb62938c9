package feed

import "fmt"

// FormatError reports input that has no recognizable RSS channel/item
// structure. It is fatal to a parse call.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid RSS feed: %s: %v", e.Reason, e.Err)
	}
	return "invalid RSS feed: " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ImageLookupError reports an image URL whose bytes were never fetched
type ImageLookupError struct {
	URL string
}

func (e *ImageLookupError) Error() string {
	return fmt.Sprintf("image %q is not cached", e.URL)
}

package newstext

import (
	"context"
	"strings"
)

// Method identifies the strategy that produced an extraction.
type Method string

// Extraction methods.
const (
	MethodNone      Method = ""
	MethodPrimary   Method = "primary"
	MethodSecondary Method = "secondary"
)

// Strategy is one way of getting article text for a URL.
type Strategy interface {
	// Method identifies the strategy in results and logs.
	Method() Method

	// ExtractText returns trimmed article text of at least the configured
	// minimum length. Any shortfall is reported as an error:
	// EUNAVAILABLE when the page could not be fetched, ENOTFOUND when the
	// page had no usable text.
	ExtractText(ctx context.Context, url string) (string, error)
}

// AcceptText trims text and reports whether it meets the minimum length.
// Length is counted in characters, not bytes.
func AcceptText(text string, minLength int) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	return text, len([]rune(text)) >= minLength
}

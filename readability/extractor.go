// Package readability implements newstext.Extractor and
// newstext.URLExtractor with go-readability. Its heuristic favors recall
// and serves as the fallback when the precision-biased extractor finds
// nothing usable.
package readability

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fwojciec/newstext"
	"github.com/go-shiori/go-readability"
)

// DefaultTimeout bounds ExtractURL downloads.
const DefaultTimeout = 12 * time.Second

// Ensure Extractor implements the extractor interfaces at compile time.
var (
	_ newstext.Extractor    = (*Extractor)(nil)
	_ newstext.URLExtractor = (*Extractor)(nil)
)

// Extractor wraps go-readability to extract main content from HTML.
type Extractor struct {
	timeout   time.Duration
	userAgent string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout bounds the download performed by ExtractURL.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.timeout = d
	}
}

// WithUserAgent sets the User-Agent used by ExtractURL.
func WithUserAgent(ua string) Option {
	return func(e *Extractor) {
		e.userAgent = ua
	}
}

// NewExtractor creates a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		timeout:   DefaultTimeout,
		userAgent: newstext.DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract processes raw HTML and returns the main content as plain text.
func (e *Extractor) Extract(rawHTML string, pageURL string) (*newstext.ExtractResult, error) {
	if rawHTML == "" {
		return nil, newstext.Errorf(newstext.EINVALID, "empty HTML input")
	}

	var u *url.URL
	if parsed, err := url.Parse(pageURL); err == nil && parsed.IsAbs() {
		u = parsed
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), u)
	if err != nil {
		return nil, newstext.Errorf(newstext.ENOTFOUND, "readability: %v", err)
	}

	return &newstext.ExtractResult{
		Title: article.Title,
		Text:  strings.TrimSpace(article.TextContent),
	}, nil
}

// ExtractURL downloads pageURL with go-readability's own HTTP client and
// extracts the main content. The download is bounded by the configured
// timeout; ctx is only checked before it starts.
func (e *Extractor) ExtractURL(ctx context.Context, pageURL string) (*newstext.ExtractResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	article, err := readability.FromURL(pageURL, e.timeout, func(r *http.Request) {
		r.Header.Set("User-Agent", e.userAgent)
	})
	if err != nil {
		return nil, newstext.Errorf(newstext.EUNAVAILABLE, "readability: %v", err)
	}

	return &newstext.ExtractResult{
		Title: article.Title,
		Text:  strings.TrimSpace(article.TextContent),
	}, nil
}

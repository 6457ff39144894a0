// Package trafilatura implements newstext.Extractor with go-trafilatura,
// tuned for news articles: precision over recall, no comments, links or
// images in the output.
package trafilatura

import (
	"errors"
	"net/url"
	"strings"

	"github.com/fwojciec/newstext"
	"github.com/markusmobius/go-trafilatura"
)

// Ensure Extractor implements newstext.Extractor at compile time.
var _ newstext.Extractor = (*Extractor)(nil)

// Extractor wraps go-trafilatura to extract main content from HTML.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract processes raw HTML and returns the main content as plain text.
func (e *Extractor) Extract(rawHTML string, pageURL string) (*newstext.ExtractResult, error) {
	if rawHTML == "" {
		return nil, errors.New("empty HTML input")
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		Focus:           trafilatura.FavorPrecision,
		ExcludeComments: true,
		IncludeLinks:    false,
		IncludeImages:   false,
	}
	if u, err := url.Parse(pageURL); err == nil && u.IsAbs() {
		opts.OriginalURL = u
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), opts)
	if err != nil {
		return nil, newstext.Errorf(newstext.ENOTFOUND, "trafilatura: %v", err)
	}

	return &newstext.ExtractResult{
		Title: result.Metadata.Title,
		Text:  strings.TrimSpace(result.ContentText),
	}, nil
}

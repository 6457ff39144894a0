package mock

import (
	"context"

	"github.com/fwojciec/newstext"
)

var (
	_ newstext.Extractor    = (*Extractor)(nil)
	_ newstext.URLExtractor = (*URLExtractor)(nil)
)

// Extractor is a mock implementation of newstext.Extractor.
type Extractor struct {
	ExtractFn func(html, pageURL string) (*newstext.ExtractResult, error)
}

func (e *Extractor) Extract(html, pageURL string) (*newstext.ExtractResult, error) {
	return e.ExtractFn(html, pageURL)
}

// URLExtractor is a mock implementation of newstext.URLExtractor.
type URLExtractor struct {
	ExtractURLFn func(ctx context.Context, pageURL string) (*newstext.ExtractResult, error)
}

func (e *URLExtractor) ExtractURL(ctx context.Context, pageURL string) (*newstext.ExtractResult, error) {
	return e.ExtractURLFn(ctx, pageURL)
}

package mock

import (
	"context"

	"github.com/fwojciec/newstext"
)

var (
	_ newstext.NewsDecoder = (*NewsDecoder)(nil)
	_ newstext.URLResolver = (*URLResolver)(nil)
)

// NewsDecoder is a mock implementation of newstext.NewsDecoder.
type NewsDecoder struct {
	MatchesFn func(rawURL string) bool
	DecodeFn  func(ctx context.Context, rawURL string) (string, error)
}

func (d *NewsDecoder) Matches(rawURL string) bool {
	return d.MatchesFn(rawURL)
}

func (d *NewsDecoder) Decode(ctx context.Context, rawURL string) (string, error) {
	return d.DecodeFn(ctx, rawURL)
}

// URLResolver is a mock implementation of newstext.URLResolver.
type URLResolver struct {
	ResolveFn func(ctx context.Context, rawURL string) string
}

func (r *URLResolver) Resolve(ctx context.Context, rawURL string) string {
	return r.ResolveFn(ctx, rawURL)
}

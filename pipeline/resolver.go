package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/newstext"
	"golang.org/x/sync/singleflight"
)

// Ensure Resolver implements newstext.URLResolver at compile time.
var _ newstext.URLResolver = (*Resolver)(nil)

// Resolver decodes aggregator links to article URLs, caching successful
// decodes for TTL. It fails open: any decode error is logged and the
// original URL is returned.
type Resolver struct {
	Decoder newstext.NewsDecoder
	Cache   Cache[string]
	TTL     time.Duration
	Logger  *slog.Logger

	group singleflight.Group
}

// Resolve returns the URL to extract content from. URLs the decoder does
// not match are returned as-is without touching the cache.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) string {
	if r.Decoder == nil || !r.Decoder.Matches(rawURL) {
		return rawURL
	}

	if decoded, ok := r.Cache.Get(rawURL); ok {
		return decoded
	}

	v, err, _ := r.group.Do(rawURL, func() (any, error) {
		decoded, err := r.Decoder.Decode(context.WithoutCancel(ctx), rawURL)
		if err != nil {
			return "", err
		}
		if decoded == "" {
			return "", newstext.Errorf(newstext.ENOTFOUND, "decoder returned no URL")
		}
		r.Cache.Set(rawURL, decoded, r.TTL)
		return decoded, nil
	})
	if err != nil {
		r.logger().Warn("decode failed, using original URL", "url", rawURL, "err", errorText(err))
		return rawURL
	}
	return v.(string)
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

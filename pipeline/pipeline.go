// Package pipeline implements the decode -> fetch -> extract flow: a
// Resolver that turns Google News links into article URLs, and a Pipeline
// that runs extraction strategies in order and caches what they produce.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/newstext"
	"golang.org/x/sync/singleflight"
)

// Cache is the subset of cache.TTL the pipeline needs.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
}

// Ensure Pipeline implements newstext.ArticleExtractor at compile time.
var _ newstext.ArticleExtractor = (*Pipeline)(nil)

// Pipeline extracts article text by trying each strategy in order until
// one succeeds. Outcomes are cached per URL: successes for TextTTL,
// failures for the shorter FailureTTL so they are retried sooner.
//
// Concurrent calls for the same URL share a single run. A run is detached
// from the caller's cancellation so that an abandoned request still fills
// the cache; fetch timeouts bound it.
type Pipeline struct {
	Cache      Cache[newstext.ExtractionResult]
	Strategies []newstext.Strategy
	TextTTL    time.Duration
	FailureTTL time.Duration

	// Log, if set, receives a record of every non-cached run.
	Log newstext.ExtractionLog

	Logger *slog.Logger

	group singleflight.Group
}

// ExtractArticle returns article text for url. It never fails: when no
// strategy succeeds the result has empty Text and MethodNone.
func (p *Pipeline) ExtractArticle(ctx context.Context, url string) newstext.ExtractionResult {
	if r, ok := p.Cache.Get(url); ok {
		r.Cached = true
		return r
	}

	v, _, _ := p.group.Do(url, func() (any, error) {
		if r, ok := p.Cache.Get(url); ok {
			r.Cached = true
			return r, nil
		}
		return p.run(context.WithoutCancel(ctx), url), nil
	})
	return v.(newstext.ExtractionResult)
}

func (p *Pipeline) run(ctx context.Context, url string) newstext.ExtractionResult {
	begin := time.Now()
	result := newstext.ExtractionResult{URL: url, Method: newstext.MethodNone}

	var lastErr error
	for _, s := range p.Strategies {
		text, err := s.ExtractText(ctx, url)
		if err == nil && text != "" {
			result.Text = text
			result.Method = s.Method()
			break
		}
		if err == nil {
			err = newstext.Errorf(newstext.ENOTFOUND, "%s strategy returned no text", s.Method())
		}
		lastErr = err
		p.logger().Debug("strategy failed", "url", url, "method", s.Method(), "err", err)
	}

	if result.OK() {
		p.Cache.Set(url, result, p.TextTTL)
	} else {
		result.Error = "no extraction strategy configured"
		if lastErr != nil {
			result.Error = errorText(lastErr)
		}
		p.Cache.Set(url, result, p.FailureTTL)
	}

	p.record(ctx, result, time.Since(begin))
	return result
}

func (p *Pipeline) record(ctx context.Context, result newstext.ExtractionResult, d time.Duration) {
	if p.Log == nil {
		return
	}
	rec := &newstext.ExtractionRecord{
		URL:        result.URL,
		Method:     result.Method,
		TextLength: len([]rune(result.Text)),
		Duration:   d,
		Error:      result.Error,
	}
	if err := p.Log.RecordExtraction(ctx, rec); err != nil {
		p.logger().Warn("recording extraction", "url", result.URL, "err", err)
	}
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

// errorText prefers the application message and falls back to the raw
// error for foreign errors.
func errorText(err error) string {
	if newstext.ErrorCode(err) == newstext.EINTERNAL {
		return err.Error()
	}
	return newstext.ErrorMessage(err)
}

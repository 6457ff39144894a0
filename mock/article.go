package mock

import (
	"context"
	"time"

	"github.com/fwojciec/newstext"
)

var (
	_ newstext.ArticleExtractor = (*ArticleExtractor)(nil)
	_ newstext.ExtractionLog    = (*ExtractionLog)(nil)
)

// ArticleExtractor is a mock implementation of newstext.ArticleExtractor.
type ArticleExtractor struct {
	ExtractArticleFn func(ctx context.Context, url string) newstext.ExtractionResult
}

func (e *ArticleExtractor) ExtractArticle(ctx context.Context, url string) newstext.ExtractionResult {
	return e.ExtractArticleFn(ctx, url)
}

// ExtractionLog is a mock implementation of newstext.ExtractionLog.
type ExtractionLog struct {
	RecordExtractionFn func(ctx context.Context, rec *newstext.ExtractionRecord) error
	SummaryFn          func(ctx context.Context, since time.Time) (*newstext.ExtractionSummary, error)
}

func (l *ExtractionLog) RecordExtraction(ctx context.Context, rec *newstext.ExtractionRecord) error {
	return l.RecordExtractionFn(ctx, rec)
}

func (l *ExtractionLog) Summary(ctx context.Context, since time.Time) (*newstext.ExtractionSummary, error) {
	return l.SummaryFn(ctx, since)
}

package newstext

import (
	"context"
	"time"
)

// ExtractionResult is the outcome of running the extraction pipeline for
// one URL. An empty Text means no strategy succeeded; it is not an error.
type ExtractionResult struct {
	URL    string `json:"url"`
	Text   string `json:"text"`
	Method Method `json:"method"`
	Error  string `json:"error,omitempty"`
	Cached bool   `json:"cached"`
}

// OK reports whether the extraction produced text.
func (r ExtractionResult) OK() bool {
	return r.Text != ""
}

// ArticleExtractor extracts article text for a canonical URL.
type ArticleExtractor interface {
	// ExtractArticle never fails; a total failure yields a result with
	// empty Text and MethodNone.
	ExtractArticle(ctx context.Context, url string) ExtractionResult
}

// ExtractionRecord describes one non-cached pipeline run.
type ExtractionRecord struct {
	ID         string        `json:"id"`
	URL        string        `json:"url"`
	Method     Method        `json:"method"`
	TextLength int           `json:"textLength"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Validate returns an error if the record contains invalid fields.
func (r *ExtractionRecord) Validate() error {
	if r.URL == "" {
		return Errorf(EINVALID, "extraction record URL required")
	}
	switch r.Method {
	case MethodNone, MethodPrimary, MethodSecondary:
	default:
		return Errorf(EINVALID, "unknown extraction method %q", r.Method)
	}
	return nil
}

// ExtractionSummary aggregates recorded extractions.
type ExtractionSummary struct {
	Total     int `json:"total"`
	Primary   int `json:"primary"`
	Secondary int `json:"secondary"`
	Failed    int `json:"failed"`
}

// ExtractionLog persists extraction records.
type ExtractionLog interface {
	// RecordExtraction stores a record, assigning ID and, when unset,
	// CreatedAt.
	RecordExtraction(ctx context.Context, rec *ExtractionRecord) error

	// Summary counts records by outcome, optionally only those created
	// at or after since. A zero since counts everything.
	Summary(ctx context.Context, since time.Time) (*ExtractionSummary, error)
}

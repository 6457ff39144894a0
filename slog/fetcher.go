// Package slog decorates newstext services with structured logging.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/newstext"
)

// Ensure LoggingFetcher implements newstext.Fetcher.
var _ newstext.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher with logging.
type LoggingFetcher struct {
	next   newstext.Fetcher
	logger *slog.Logger
	name   string
}

// NewLoggingFetcher creates a new LoggingFetcher. Name distinguishes
// fetch paths in the log output and may be empty.
func NewLoggingFetcher(next newstext.Fetcher, logger *slog.Logger, name string) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger, name: name}
}

// Fetch logs the URL being fetched and delegates to the wrapped fetcher.
func (f *LoggingFetcher) Fetch(ctx context.Context, url string) (html string, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"url", url,
			"bytes", len(html),
			"duration", time.Since(begin),
			"err", err,
		}
		if f.name != "" {
			attrs = append(attrs, "fetcher", f.name)
		}
		f.logger.Debug("fetch", attrs...)
	}(time.Now())
	return f.next.Fetch(ctx, url)
}

// Close delegates to the wrapped fetcher.
func (f *LoggingFetcher) Close() error {
	return f.next.Close()
}

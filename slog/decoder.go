package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/newstext"
)

// Ensure LoggingDecoder implements newstext.NewsDecoder.
var _ newstext.NewsDecoder = (*LoggingDecoder)(nil)

// LoggingDecoder wraps a NewsDecoder with logging.
type LoggingDecoder struct {
	next   newstext.NewsDecoder
	logger *slog.Logger
}

// NewLoggingDecoder creates a new LoggingDecoder.
func NewLoggingDecoder(next newstext.NewsDecoder, logger *slog.Logger) *LoggingDecoder {
	return &LoggingDecoder{next: next, logger: logger}
}

// Matches delegates to the wrapped decoder.
func (d *LoggingDecoder) Matches(rawURL string) bool {
	return d.next.Matches(rawURL)
}

// Decode delegates to the wrapped decoder and logs the outcome.
func (d *LoggingDecoder) Decode(ctx context.Context, rawURL string) (decoded string, err error) {
	defer func(begin time.Time) {
		d.logger.Info("decode",
			"url", rawURL,
			"decoded", decoded,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return d.next.Decode(ctx, rawURL)
}

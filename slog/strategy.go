package slog

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/fwojciec/newstext"
)

// Ensure LoggingStrategy implements newstext.Strategy.
var _ newstext.Strategy = (*LoggingStrategy)(nil)

// LoggingStrategy wraps a Strategy with logging.
type LoggingStrategy struct {
	next   newstext.Strategy
	logger *slog.Logger
}

// NewLoggingStrategy creates a new LoggingStrategy.
func NewLoggingStrategy(next newstext.Strategy, logger *slog.Logger) *LoggingStrategy {
	return &LoggingStrategy{next: next, logger: logger}
}

// Method delegates to the wrapped strategy.
func (s *LoggingStrategy) Method() newstext.Method {
	return s.next.Method()
}

// ExtractText delegates to the wrapped strategy and logs the outcome.
// Failures are expected for many pages and are logged at debug level.
func (s *LoggingStrategy) ExtractText(ctx context.Context, url string) (text string, err error) {
	defer func(begin time.Time) {
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelDebug
		}
		s.logger.Log(ctx, level, "extract",
			"url", url,
			"method", string(s.next.Method()),
			"chars", utf8.RuneCountInString(text),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.ExtractText(ctx, url)
}

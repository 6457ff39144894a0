package sqlite

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/newstext"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ newstext.ExtractionLog = (*ExtractionLog)(nil)

// ExtractionLog implements newstext.ExtractionLog using SQLite.
type ExtractionLog struct {
	db *DB
}

// NewExtractionLog creates a new ExtractionLog.
func NewExtractionLog(db *DB) *ExtractionLog {
	return &ExtractionLog{db: db}
}

// RecordExtraction stores rec with a generated ID. CreatedAt is set to the
// current time unless the caller already set it.
func (l *ExtractionLog) RecordExtraction(ctx context.Context, rec *newstext.ExtractionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	rec.ID = uuid.New().String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO extractions (id, url, method, text_length, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.URL, string(rec.Method), rec.TextLength, rec.Duration.Milliseconds(),
		rec.Error, rec.CreatedAt.UnixMilli())

	return err
}

// Summary counts recorded extractions by outcome. A zero since counts all
// records.
func (l *ExtractionLog) Summary(ctx context.Context, since time.Time) (*newstext.ExtractionSummary, error) {
	var from int64
	if !since.IsZero() {
		from = since.UnixMilli()
	}

	var s newstext.ExtractionSummary
	err := l.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(method = ?), 0),
			COALESCE(SUM(method = ?), 0),
			COALESCE(SUM(method = ''), 0)
		FROM extractions
		WHERE created_at >= ?
	`, string(newstext.MethodPrimary), string(newstext.MethodSecondary), from).
		Scan(&s.Total, &s.Primary, &s.Secondary, &s.Failed)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// Prune deletes records created before cutoff and reports how many went.
func (l *ExtractionLog) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM extractions WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RunRetention prunes records older than keep every interval until ctx is
// done. A non-positive keep or interval returns immediately.
func (l *ExtractionLog) RunRetention(ctx context.Context, keep, interval time.Duration, logger *slog.Logger) error {
	if keep <= 0 || interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			n, err := l.Prune(ctx, now.Add(-keep))
			if err != nil {
				logger.Warn("pruning extraction log", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("pruned extraction log", "removed", n)
			}
		}
	}
}

package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// maxSQLLength bounds the SQL text written to a log record.
const maxSQLLength = 200

// queryLogger implements GORM's logger.Interface on top of slog. Failed
// queries log at error, slow ones at warn and the rest at debug. The SQL
// text is only rendered when the record will be written.
type queryLogger struct {
	logger *slog.Logger
	slow   time.Duration
}

func newQueryLogger(l *slog.Logger, slow time.Duration) queryLogger {
	return queryLogger{logger: l, slow: slow}
}

// LogMode is a no-op; the slog handler decides what is written.
func (q queryLogger) LogMode(logger.LogLevel) logger.Interface { return q }

func (q queryLogger) Info(ctx context.Context, msg string, args ...any) {
	q.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
}

func (q queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	q.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
}

func (q queryLogger) Error(ctx context.Context, msg string, args ...any) {
	q.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
}

// Trace is called after every statement. gorm.ErrRecordNotFound is the
// normal empty result of First and is not treated as a failure.
func (q queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	level, msg := slog.LevelDebug, "query"
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		level, msg = slog.LevelError, "query failed"
	case q.slow > 0 && elapsed > q.slow:
		level, msg = slog.LevelWarn, "slow query"
	}
	if !q.logger.Enabled(ctx, level) {
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", shorten(sql)),
		slog.Int64("rows", rows),
		slog.Duration("duration", elapsed),
	}
	if level == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	q.logger.LogAttrs(ctx, level, msg, attrs...)
}

// shorten keeps the head and tail of long statements.
func shorten(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	half := (maxSQLLength - 3) / 2
	return sql[:half] + "..." + sql[len(sql)-half:]
}

package tracking

import (
	"context"
	"log/slog"

	"github.com/helixml/linefit/domain/task"
)

// LoggingReporter implements Reporter by logging job progress.
type LoggingReporter struct {
	logger *slog.Logger
}

// NewLoggingReporter creates a new LoggingReporter.
func NewLoggingReporter(logger *slog.Logger) *LoggingReporter {
	return &LoggingReporter{
		logger: logger,
	}
}

// OnChange logs the job status. Progress is logged at info level; terminal
// states are already logged by the worker pool and go to debug.
func (r *LoggingReporter) OnChange(ctx context.Context, status task.Status) error {
	attrs := []slog.Attr{
		slog.String("job", status.ID()),
		slog.String("state", string(status.State())),
		slog.Int("current", status.Current()),
	}
	if status.Total() > 0 {
		attrs = append(attrs, slog.Float64("completion_percent", status.CompletionPercent()))
	}
	if msg := status.Message(); msg != "" {
		attrs = append(attrs, slog.String("message", msg))
	}

	switch status.State() {
	case task.ReportingStateInProgress:
		r.logger.LogAttrs(ctx, slog.LevelInfo, "job progress", attrs...)
	case task.ReportingStateFailed:
		attrs = append(attrs, slog.String("error", status.Error()))
		r.logger.LogAttrs(ctx, slog.LevelDebug, "job status", attrs...)
	default:
		r.logger.LogAttrs(ctx, slog.LevelDebug, "job status", attrs...)
	}
	return nil
}

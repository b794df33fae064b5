package event

import (
	"context"
	"log/slog"
)

// Sink is the durable append-only log for impression/engagement records.
// Persist is best-effort with at-most-once semantics: the dispatcher never
// retries, though a sink implementation may retry internally. Persist must
// honor ctx cancellation.
type Sink interface {
	// Persist appends a record to the sink.
	Persist(ctx context.Context, rec Record) error

	// Name identifies the sink backend for logs and metrics.
	Name() string
}

// LogSink is a Sink that writes records to structured logs only.
// Useful for development and as a safe default when no durable
// backend is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger falls back to slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Persist logs the record at debug level. It never fails.
func (s *LogSink) Persist(ctx context.Context, rec Record) error {
	postID, userID := rec.Subject()
	s.logger.LogAttrs(ctx, slog.LevelDebug, "event persisted",
		slog.String("sink", s.Name()),
		slog.String("kind", string(rec.Kind())),
		slog.String("event_id", rec.EventID()),
		slog.String("post_id", postID),
		slog.String("user_id", userID),
	)
	return nil
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

package notify

import (
	"context"
	"log/slog"

	"github.com/phrazzld/taskhub-api/internal/platform/logger"
)

// LogSink writes every message to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{logger: l.With("component", "notify_log")}
}

// Notify logs message at info level. It never fails.
func (s *LogSink) Notify(ctx context.Context, message string) error {
	logger.FromContextOrDefault(ctx, s.logger).Info("notification", "message", message)
	return nil
}

// Close implements Sink.
func (s *LogSink) Close() error {
	return nil
}

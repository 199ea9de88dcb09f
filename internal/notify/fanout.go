package notify

import (
	"context"
	"errors"
	"log/slog"
)

// Fanout delivers every message to all of its sinks, in order.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewFanout creates a Fanout over sinks.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{
		sinks:  sinks,
		logger: logger.With("component", "notify_fanout"),
	}
}

// Notify sends message to every sink even when an earlier one fails. It
// returns the first error encountered.
func (f *Fanout) Notify(ctx context.Context, message string) error {
	var firstErr error
	for i, sink := range f.sinks {
		if err := sink.Notify(ctx, message); err != nil {
			f.logger.Warn("sink failed to deliver notification",
				"error", err,
				"sink_index", i)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close closes every sink and joins their errors.
func (f *Fanout) Close() error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

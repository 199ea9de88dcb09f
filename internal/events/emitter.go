package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrNoHandlers is returned by a strict emitter when nothing is registered.
var ErrNoHandlers = errors.New("no event handlers registered")

// InMemoryEventEmitter dispatches events synchronously to handlers
// registered in the same process.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	strict   bool
	logger   *slog.Logger
}

// EmitterOption configures an InMemoryEventEmitter.
type EmitterOption func(*InMemoryEventEmitter)

// WithStrictDelivery makes EmitEvent fail with ErrNoHandlers when no handler
// is registered, instead of dropping the event with a warning.
func WithStrictDelivery() EmitterOption {
	return func(e *InMemoryEventEmitter) {
		e.strict = true
	}
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger, opts ...EmitterOption) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		logger:   logger.With("component", "in_memory_event_emitter"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterHandler adds a new event handler to receive events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new event handler", "handler_count", len(e.handlers))
}

// EmitEvent publishes the event to all registered handlers. Every handler
// sees the event even when an earlier one fails; the failures are joined.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskRequestEvent) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	e.logger.Debug("emitting event",
		"event_id", event.ID,
		"event_type", event.Type,
		"handler_count", len(handlers))

	if len(handlers) == 0 {
		if e.strict {
			return ErrNoHandlers
		}
		e.logger.Warn("no handlers registered for event",
			"event_id", event.ID,
			"event_type", event.Type)
		return nil
	}

	var errs []error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

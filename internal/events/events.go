package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyEventType is returned by NewTaskRequestEvent for a blank type.
var ErrEmptyEventType = errors.New("event type cannot be empty")

// TaskRequestEvent asks for background work on a task. The payload shape is
// owned by the handler that understands Type.
type TaskRequestEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type selects the handler that acts on the event
	Type string `json:"type"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the UTC time the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *TaskRequestEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskRequestEvent creates an event of the given type carrying payload.
func NewTaskRequestEvent(eventType string, payload any) (*TaskRequestEvent, error) {
	if eventType == "" {
		return nil, ErrEmptyEventType
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &TaskRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler handles events it understands and ignores the rest.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *TaskRequestEvent) error

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskRequestEvent) error {
	return f(ctx, event)
}

// EventEmitter publishes events without knowledge of the handlers.
type EventEmitter interface {
	// EmitEvent delivers event to every registered handler. A non-nil error
	// means at least one handler failed to act on it.
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Notify after the sink has been closed.
var ErrClosed = errors.New("notification sink closed")

// Sink receives notification messages.
type Sink interface {
	Notify(ctx context.Context, message string) error
	Close() error
}

// SinkFunc adapts a function to the Sink interface. Close is a no-op.
type SinkFunc func(ctx context.Context, message string) error

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, message string) error {
	return f(ctx, message)
}

// Close implements Sink.
func (f SinkFunc) Close() error {
	return nil
}

// Envelope is the wire format of a published notification.
type Envelope struct {
	ID      uuid.UUID `json:"id"`
	Message string    `json:"message"`
	Service string    `json:"service"`
	SentAt  time.Time `json:"sent_at"`
}

func newEnvelope(service, message string, now time.Time) Envelope {
	return Envelope{
		ID:      uuid.New(),
		Message: message,
		Service: service,
		SentAt:  now.UTC(),
	}
}

func (e Envelope) marshal() ([]byte, error) {
	return json.Marshal(e)
}

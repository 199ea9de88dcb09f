package mocks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/taskhub-api/internal/notify"
)

// RecordingSink implements notify.Sink and keeps every delivered message.
type RecordingSink struct {
	// Err is returned from Notify after the message is recorded.
	Err error

	mu       sync.Mutex
	messages []string
	closed   bool
	sent     chan string
}

var _ notify.Sink = (*RecordingSink)(nil)

// NewRecordingSink returns an empty RecordingSink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{sent: make(chan string, 64)}
}

// Notify records the message.
func (s *RecordingSink) Notify(_ context.Context, message string) error {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	err := s.Err
	s.mu.Unlock()

	select {
	case s.sent <- message:
	default:
	}
	return err
}

// Close marks the sink closed.
func (s *RecordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Messages returns a copy of the recorded messages in delivery order.
func (s *RecordingSink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// Closed reports whether Close was called.
func (s *RecordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Wait blocks until the next message arrives and fails the test after timeout.
func (s *RecordingSink) Wait(t testing.TB, timeout time.Duration) string {
	t.Helper()
	select {
	case msg := <-s.sent:
		return msg
	case <-time.After(timeout):
		t.Fatalf("no notification within %s", timeout)
		return ""
	}
}

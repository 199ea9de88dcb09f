package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskhub-api/internal/platform/logger"
)

type recordingSink struct {
	messages []string
	err      error
	closeErr error
	closed   bool
}

func (s *recordingSink) Notify(ctx context.Context, message string) error {
	s.messages = append(s.messages, message)
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return s.closeErr
}

func TestFanout_Notify(t *testing.T) {
	errFirst := errors.New("first sink down")
	a := &recordingSink{err: errFirst}
	b := &recordingSink{}
	c := &recordingSink{err: errors.New("third sink down")}

	f := NewFanout(nil, a, b, c)
	assert.Equal(t, 3, f.Len())

	err := f.Notify(context.Background(), "Task 1 (x) has been completed successfully.")
	assert.ErrorIs(t, err, errFirst)

	for _, s := range []*recordingSink{a, b, c} {
		assert.Equal(t, []string{"Task 1 (x) has been completed successfully."}, s.messages)
	}
}

func TestFanout_Empty(t *testing.T) {
	f := NewFanout(nil)
	assert.NoError(t, f.Notify(context.Background(), "ignored"))
	assert.NoError(t, f.Close())
}

func TestFanout_Close(t *testing.T) {
	closeErr := errors.New("close failed")
	a := &recordingSink{closeErr: closeErr}
	b := &recordingSink{}

	err := NewFanout(nil, a, b).Close()
	assert.ErrorIs(t, err, closeErr)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestSinkFunc(t *testing.T) {
	var got string
	sink := SinkFunc(func(ctx context.Context, message string) error {
		got = message
		return nil
	})

	require.NoError(t, sink.Notify(context.Background(), "hello"))
	assert.Equal(t, "hello", got)
	assert.NoError(t, sink.Close())
}

func TestLogSink(t *testing.T) {
	buf, l := logger.NewTestLogger(t)
	sink := NewLogSink(l)

	require.NoError(t, sink.Notify(context.Background(), "Task 3 (report) processing failed: boom"))
	require.NoError(t, sink.Close())

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "notification", entries[0]["msg"])
	assert.Equal(t, "Task 3 (report) processing failed: boom", entries[0]["message"])
	assert.Equal(t, "notify_log", entries[0]["component"])
}

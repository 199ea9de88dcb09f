package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskhub-api/internal/config"
)

type publishedMessage struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakePublisher struct {
	published  []publishedMessage
	publishErr error
	closed     int
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.published = append(p.published, publishedMessage{exchange: exchange, key: key, msg: msg})
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed++
	return nil
}

func TestAMQPSink_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	sink := newAMQPSink(pub, config.AMQPConfig{Exchange: "tasks", RoutingKey: "task.done"}, "taskhub", nil)

	require.NoError(t, sink.Notify(context.Background(), "Task 2 (deploy) processing failed: timeout"))
	require.Len(t, pub.published, 1)

	got := pub.published[0]
	assert.Equal(t, "tasks", got.exchange)
	assert.Equal(t, "task.done", got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, "taskhub", got.msg.AppId)

	var env Envelope
	require.NoError(t, json.Unmarshal(got.msg.Body, &env))
	assert.Equal(t, "Task 2 (deploy) processing failed: timeout", env.Message)
	assert.Equal(t, env.ID.String(), got.msg.MessageId)
}

func TestAMQPSink_Defaults(t *testing.T) {
	pub := &fakePublisher{}
	sink := newAMQPSink(pub, config.AMQPConfig{}, "taskhub", nil)

	require.NoError(t, sink.Notify(context.Background(), "hello"))
	assert.Equal(t, "taskhub.notifications", pub.published[0].exchange)
	assert.Equal(t, "task.notification", pub.published[0].key)
}

func TestAMQPSink_Errors(t *testing.T) {
	publishErr := errors.New("channel/connection is not open")
	pub := &fakePublisher{publishErr: publishErr}
	sink := newAMQPSink(pub, config.AMQPConfig{}, "taskhub", nil)

	assert.ErrorIs(t, sink.Notify(context.Background(), "x"), publishErr)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.Equal(t, 1, pub.closed)
	assert.ErrorIs(t, sink.Notify(context.Background(), "x"), ErrClosed)

	_, err := NewAMQPSink(config.AMQPConfig{}, "taskhub", nil)
	assert.Error(t, err)
}

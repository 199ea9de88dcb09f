package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/phrazzld/taskhub-api/internal/config"
)

// publisher is the part of *amqp.Channel the sink uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes notifications to a RabbitMQ topic exchange.
type AMQPSink struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	ch         publisher
	exchange   string
	routingKey string
	service    string
	logger     *slog.Logger
	now        func() time.Time
	closed     bool
}

// NewAMQPSink dials RabbitMQ and declares a durable topic exchange.
func NewAMQPSink(cfg config.AMQPConfig, service string, logger *slog.Logger) (*AMQPSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp url cannot be empty")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	exchange := exchangeOrDefault(cfg.Exchange)
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}

	sink := newAMQPSink(ch, cfg, service, logger)
	sink.conn = conn
	return sink, nil
}

func newAMQPSink(ch publisher, cfg config.AMQPConfig, service string, logger *slog.Logger) *AMQPSink {
	if logger == nil {
		logger = slog.Default()
	}
	routingKey := cfg.RoutingKey
	if routingKey == "" {
		routingKey = "task.notification"
	}
	exchange := exchangeOrDefault(cfg.Exchange)
	return &AMQPSink{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		service:    service,
		logger:     logger.With("component", "notify_amqp", "exchange", exchange),
		now:        time.Now,
	}
}

func exchangeOrDefault(name string) string {
	if name == "" {
		return "taskhub.notifications"
	}
	return name
}

// Notify publishes message wrapped in an Envelope as a persistent message.
func (s *AMQPSink) Notify(ctx context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	env := newEnvelope(s.service, message, s.now())
	body, err := env.marshal()
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	err = s.ch.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID.String(),
		Timestamp:    env.SentAt,
		AppId:        s.service,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification to rabbitmq: %w", err)
	}

	s.logger.Debug("notification published", "notification_id", env.ID)
	return nil
}

// Close closes the channel and the connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.ch.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

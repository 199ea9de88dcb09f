package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phrazzld/taskhub-api/internal/config"
)

// RedisSink publishes notifications on a Redis pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
	service string
	logger  *slog.Logger
	now     func() time.Time
	closed  atomic.Bool
}

// NewRedisSink connects to Redis and verifies the connection with PING.
func NewRedisSink(ctx context.Context, cfg config.RedisConfig, service string, logger *slog.Logger) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisSinkWithClient(client, cfg.Channel, service, logger), nil
}

// NewRedisSinkWithClient wraps an existing client. The sink owns the client
// and closes it on Close.
func NewRedisSinkWithClient(client *redis.Client, channel, service string, logger *slog.Logger) *RedisSink {
	if channel == "" {
		channel = "taskhub:notifications"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSink{
		client:  client,
		channel: channel,
		service: service,
		logger:  logger.With("component", "notify_redis", "channel", channel),
		now:     time.Now,
	}
}

// Notify publishes message wrapped in an Envelope.
func (s *RedisSink) Notify(ctx context.Context, message string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	env := newEnvelope(s.service, message, s.now())
	body, err := env.marshal()
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	receivers, err := s.client.Publish(ctx, s.channel, body).Result()
	if err != nil {
		return fmt.Errorf("failed to publish notification to redis: %w", err)
	}

	s.logger.Debug("notification published",
		"notification_id", env.ID,
		"receivers", receivers)
	return nil
}

// Close closes the Redis client.
func (s *RedisSink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskhub-api/internal/config"
)

// New builds the sinks listed in cfg and combines them in a Fanout. The
// "none" kind contributes nothing; an empty result still accepts messages.
func New(ctx context.Context, cfg config.NotifyConfig, service string, logger *slog.Logger) (*Fanout, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []Sink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	for _, kind := range cfg.Sinks {
		switch kind {
		case config.SinkLog:
			sinks = append(sinks, NewLogSink(logger))
		case config.SinkRedis:
			s, err := NewRedisSink(ctx, cfg.Redis, service, logger)
			if err != nil {
				closeAll()
				return nil, err
			}
			sinks = append(sinks, s)
		case config.SinkAMQP:
			s, err := NewAMQPSink(cfg.AMQP, service, logger)
			if err != nil {
				closeAll()
				return nil, err
			}
			sinks = append(sinks, s)
		case config.SinkNone:
		default:
			closeAll()
			return nil, fmt.Errorf("unknown notification sink %q", kind)
		}
	}

	logger.Info("notification sinks configured", "sinks", cfg.Sinks)
	return NewFanout(logger, sinks...), nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TASKHUB"

// ConfigPathEnv names an explicit configuration file.
const ConfigPathEnv = "TASKHUB_CONFIG_PATH"

// ErrInvalidConfig is returned when the loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigPathEnv))
}

// LoadFile is Load with an explicit config file. An empty path searches
// the working directory for config.yaml and tolerates its absence.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Notify.Has(SinkRedis) && c.Notify.Redis.Addr == "" {
		return fmt.Errorf("%w: notify.redis.addr is required for the redis sink", ErrInvalidConfig)
	}
	if c.Notify.Has(SinkAMQP) && c.Notify.AMQP.URL == "" {
		return fmt.Errorf("%w: notify.amqp.url is required for the amqp sink", ErrInvalidConfig)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.service_name", "taskhub")
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_minutes", 5)
	v.SetDefault("database.tx_retry_attempts", 3)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("processor.phase_durations_ms", []int{2000, 3000})
	v.SetDefault("processor.queue_size", 100)
	v.SetDefault("processor.worker_count", 4)
	v.SetDefault("processor.stuck_task_age_minutes", 0)
	v.SetDefault("processor.stuck_task_check_interval_minutes", 1)

	v.SetDefault("notify.sinks", []string{SinkLog})
	v.SetDefault("notify.redis.addr", "")
	v.SetDefault("notify.redis.password", "")
	v.SetDefault("notify.redis.db", 0)
	v.SetDefault("notify.redis.channel", "taskhub:notifications")
	v.SetDefault("notify.amqp.url", "")
	v.SetDefault("notify.amqp.exchange", "taskhub.notifications")
	v.SetDefault("notify.amqp.routing_key", "task.notification")
}

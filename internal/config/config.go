package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Processor ProcessorConfig `mapstructure:"processor" validate:"required"`
	Notify    NotifyConfig    `mapstructure:"notify" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ServiceName            string `mapstructure:"service_name" validate:"required"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
}

// ShutdownTimeout is the grace period for in-flight requests on shutdown.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Supported database drivers.
const (
	DriverPostgres = "pgx"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=pgx mysql sqlite"`
	// URL is a driver-specific DSN: a postgres:// URL, a MySQL DSN or a SQLite file name.
	URL                    string `mapstructure:"url" validate:"required"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=0"`
	TxRetryAttempts        int    `mapstructure:"tx_retry_attempts" validate:"gte=1,lte=10"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

// ConnMaxLifetime returns the pool connection lifetime.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// AuthConfig contains authentication settings. An empty JWTSecret disables auth.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}

// Enabled reports whether API requests must carry a bearer token.
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

// TokenLifetime returns the validity period of minted access tokens.
func (c AuthConfig) TokenLifetime() time.Duration {
	return time.Duration(c.TokenLifetimeMinutes) * time.Minute
}

// ProcessorConfig controls the asynchronous task processor.
type ProcessorConfig struct {
	PhaseDurationsMS              []int `mapstructure:"phase_durations_ms" validate:"dive,gte=0"`
	QueueSize                     int   `mapstructure:"queue_size" validate:"gt=0"`
	WorkerCount                   int   `mapstructure:"worker_count" validate:"gt=0"`
	StuckTaskAgeMinutes           int   `mapstructure:"stuck_task_age_minutes" validate:"gte=0"`
	StuckTaskCheckIntervalMinutes int   `mapstructure:"stuck_task_check_interval_minutes" validate:"gt=0"`
}

// PhaseDurations converts the configured phase delays.
func (c ProcessorConfig) PhaseDurations() []time.Duration {
	out := make([]time.Duration, len(c.PhaseDurationsMS))
	for i, ms := range c.PhaseDurationsMS {
		out[i] = time.Duration(ms) * time.Millisecond
	}
	return out
}

// StuckTaskAge is zero when the stuck task sweep is disabled.
func (c ProcessorConfig) StuckTaskAge() time.Duration {
	return time.Duration(c.StuckTaskAgeMinutes) * time.Minute
}

// StuckTaskCheckInterval is the period of the stuck task sweep.
func (c ProcessorConfig) StuckTaskCheckInterval() time.Duration {
	return time.Duration(c.StuckTaskCheckIntervalMinutes) * time.Minute
}

// Notification sink kinds.
const (
	SinkLog   = "log"
	SinkRedis = "redis"
	SinkAMQP  = "amqp"
	SinkNone  = "none"
)

// NotifyConfig selects and configures the notification sinks.
// Every listed sink receives each message.
type NotifyConfig struct {
	Sinks []string    `mapstructure:"sinks" validate:"required,min=1,dive,oneof=log redis amqp none"`
	Redis RedisConfig `mapstructure:"redis"`
	AMQP  AMQPConfig  `mapstructure:"amqp"`
}

// Has reports whether the sink kind is enabled.
func (c NotifyConfig) Has(kind string) bool {
	for _, s := range c.Sinks {
		if s == kind {
			return true
		}
	}
	return false
}

// RedisConfig configures the Redis pub/sub sink.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Channel  string `mapstructure:"channel"`
}

// AMQPConfig configures the RabbitMQ sink.
type AMQPConfig struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

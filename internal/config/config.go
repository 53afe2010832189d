// Package config provides configuration structures and validation for the application.
// It handles environment-based configuration for the HTTP API, the payment processor
// and the stores and brokers both of them talk to.
package config

import (
	"errors"
	"strings"
	"time"
	_ "time/tzdata" // LEDGER_TIMEZONE must resolve on hosts without zoneinfo

	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Ledger      LedgerConfig
	Payment     PaymentConfig
	Gateway     GatewayConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers            string
	GatewayEventsTopic string // Payment gateway callbacks consumed by the processor
	NotificationTopic  string // Owner notifications drained from the outbox
	NumPartitions      int
	ReplicationFactor  int
	ConsumerGroup      string
	MinBytes           int
	MaxBytes           int
	MaxWait            time.Duration
	StartOffset        int64
	DLQTopic           string // Topic for Dead Letter Queue
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Minimum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains the shared throttle store configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int           // Maximum number of retry attempts for outbox messages
	Retention        time.Duration // PROCESSED rows older than this are purged; 0 keeps them
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// LedgerConfig contains wallet rules
type LedgerConfig struct {
	Timezone            string          // Canonical zone for daily and monthly limit windows
	MinWithdrawal       decimal.Decimal // Smallest payout accepted
	LowBalanceThreshold decimal.Decimal // Default threshold for new wallets, zero disables
	PinCompareTimeout   time.Duration
}

// PaymentConfig contains payment intent settings
type PaymentConfig struct {
	IntentTTL      time.Duration
	MaxRetry       int
	RetryInterval  time.Duration // How often the processor looks for due retries
	RetryBatchSize int
}

// GatewayConfig contains the external payment gateway client settings
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// AuthConfig contains bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// RateLimitConfig contains the fixed-window throttle for PIN-gated routes
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Location resolves the canonical ledger time zone
func (c LedgerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.GatewayEventsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_GATEWAY_EVENTS_TOPIC is required")
	}
	if c.Kafka.NotificationTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_NOTIFICATION_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Redis config
	if c.Redis.Addr == "" {
		validationErrors = append(validationErrors, "REDIS_ADDR is required")
	}
	if c.Redis.DB < 0 {
		validationErrors = append(validationErrors, "REDIS_DB must not be negative")
	}

	// Validate Outbox config
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}
	if c.Outbox.Retention < 0 {
		validationErrors = append(validationErrors, "OUTBOX_RETENTION must not be negative")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate Ledger config
	if _, err := c.Ledger.Location(); err != nil {
		validationErrors = append(validationErrors, "LEDGER_TIMEZONE must be a valid IANA zone")
	}
	if c.Ledger.MinWithdrawal.IsNegative() {
		validationErrors = append(validationErrors, "LEDGER_MIN_WITHDRAWAL must not be negative")
	}
	if c.Ledger.LowBalanceThreshold.IsNegative() {
		validationErrors = append(validationErrors, "LEDGER_LOW_BALANCE_THRESHOLD must not be negative")
	}
	if c.Ledger.PinCompareTimeout <= 0 {
		validationErrors = append(validationErrors, "LEDGER_PIN_COMPARE_TIMEOUT must be greater than 0")
	}

	// Validate Payment config
	if c.Payment.IntentTTL <= 0 {
		validationErrors = append(validationErrors, "PAYMENT_INTENT_TTL must be greater than 0")
	}
	if c.Payment.MaxRetry < 0 {
		validationErrors = append(validationErrors, "PAYMENT_MAX_RETRY must not be negative")
	}
	if c.Payment.RetryInterval <= 0 {
		validationErrors = append(validationErrors, "PAYMENT_RETRY_INTERVAL must be greater than 0")
	}
	if c.Payment.RetryBatchSize <= 0 {
		validationErrors = append(validationErrors, "PAYMENT_RETRY_BATCH_SIZE must be greater than 0")
	}

	// Validate Gateway config
	if c.Gateway.BaseURL == "" {
		validationErrors = append(validationErrors, "GATEWAY_BASE_URL is required")
	}
	if c.Gateway.Timeout <= 0 {
		validationErrors = append(validationErrors, "GATEWAY_TIMEOUT must be greater than 0")
	}

	// Validate Auth config
	if c.Auth.JWTSecret == "" {
		validationErrors = append(validationErrors, "AUTH_JWT_SECRET is required")
	}

	// Validate RateLimit config
	if c.RateLimit.Requests <= 0 {
		validationErrors = append(validationErrors, "RATE_LIMIT_REQUESTS must be greater than 0")
	}
	if c.RateLimit.Window <= 0 {
		validationErrors = append(validationErrors, "RATE_LIMIT_WINDOW must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}

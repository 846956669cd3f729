package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/iho/slotledger/internal/infrastructure/shm"
)

// Config holds all application configuration.
type Config struct {
	// Ledger
	LedgerLimits      []int64 `env:"LEDGER_LIMITS"       envDefault:"100000,80000,1000000,10000000,500000" envSeparator:","`
	LedgerTxnCapacity int     `env:"LEDGER_TXN_CAPACITY" envDefault:"100000"`
	LedgerPath        string  `env:"LEDGER_PATH"         envDefault:""`
	LedgerReset       bool    `env:"LEDGER_RESET"        envDefault:"false"`

	// Busy-wait lock
	LockMaxAttempts int           `env:"LOCK_MAX_ATTEMPTS" envDefault:"10"`
	LockPause       time.Duration `env:"LOCK_PAUSE"        envDefault:"1ns"`
	LockMaxPause    time.Duration `env:"LOCK_MAX_PAUSE"    envDefault:"1ms"`
	LockTakeover    string        `env:"LOCK_TAKEOVER"     envDefault:"wait"`

	// HTTP Server
	HTTPPort            string        `env:"HTTP_PORT"             envDefault:"8080"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	HTTPIdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT"     envDefault:"60s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Rate limiting (0 disables)
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS"   envDefault:"0"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// gRPC health server (empty disables)
	GRPCPort string `env:"GRPC_PORT" envDefault:""`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Redis idempotency store (empty URL disables)
	RedisURL            string        `env:"REDIS_URL"             envDefault:""`
	RedisConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"5s"`
	IdempotencyTTL      time.Duration `env:"IDEMPOTENCY_TTL"       envDefault:"24h"`

	// Postgres mirror (empty URL disables)
	MirrorDatabaseURL string        `env:"MIRROR_DATABASE_URL" envDefault:""`
	MirrorMaxConns    int           `env:"MIRROR_MAX_CONNS"    envDefault:"10"`
	MirrorMinConns    int           `env:"MIRROR_MIN_CONNS"    envDefault:"1"`
	MirrorTimeout     time.Duration `env:"MIRROR_TIMEOUT"      envDefault:"30s"`
	MirrorMigrate     bool          `env:"MIRROR_MIGRATE"      envDefault:"true"`

	// Kafka publisher (no brokers disables)
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"   envDefault:"ledger.transactions"`

	// Event dispatch
	EventBuffer int `env:"EVENT_BUFFER" envDefault:"4096"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if len(c.LedgerLimits) == 0 {
		errs = append(errs, errors.New("LEDGER_LIMITS must list at least one account"))
	}
	for i, limit := range c.LedgerLimits {
		if limit < 0 {
			errs = append(errs, fmt.Errorf("LEDGER_LIMITS[%d] is negative: %d", i, limit))
		}
	}
	if c.LedgerTxnCapacity <= 0 {
		errs = append(errs, fmt.Errorf("LEDGER_TXN_CAPACITY must be positive, got %d", c.LedgerTxnCapacity))
	}
	if c.LockMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("LOCK_MAX_ATTEMPTS must be positive, got %d", c.LockMaxAttempts))
	}
	if _, err := shm.ParseTakeoverPolicy(c.LockTakeover); err != nil {
		errs = append(errs, err)
	}
	if c.EventBuffer <= 0 {
		errs = append(errs, fmt.Errorf("EVENT_BUFFER must be positive, got %d", c.EventBuffer))
	}

	return errors.Join(errs...)
}

// Lock returns the busy-wait lock configuration.
func (c *Config) Lock() shm.LockConfig {
	// Validate has already checked the policy.
	policy, _ := shm.ParseTakeoverPolicy(c.LockTakeover)

	return shm.LockConfig{
		MaxAttempts: c.LockMaxAttempts,
		Pause:       c.LockPause,
		MaxPause:    c.LockMaxPause,
		Policy:      policy,
	}
}

// KafkaEnabled reports whether any Kafka broker is configured.
func (c *Config) KafkaEnabled() bool {
	for _, b := range c.KafkaBrokers {
		if b != "" {
			return true
		}
	}
	return false
}

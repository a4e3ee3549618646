// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling"`                // enable sampling in prod
}

type HTTPConfig struct {
	Port            int           `yaml:"port" env:"HTTP_PORT"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// ConfirmRateLimit caps webhook calls per client IP per window; 0 disables it.
	ConfirmRateLimit  int           `yaml:"confirm_rate_limit"`
	ConfirmRateWindow time.Duration `yaml:"confirm_rate_window"`
}

type AuthConfig struct {
	// JWTSecret enables the bearer guard on the purchase API when set.
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"AUTH_ISSUER"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Channel  string        `yaml:"channel"` // notification events channel
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Initial  time.Duration `yaml:"initial"`
	Max      time.Duration `yaml:"max"`
}

type PaymentConfig struct {
	Currency    string        `yaml:"currency"`
	Country     string        `yaml:"country"`
	TaxRate     string        `yaml:"tax_rate"` // decimal string, e.g. "0.19"
	SuccessCode string        `yaml:"success_code" env:"PAYMENT_SUCCESS_CODE"`
	OpTimeout   time.Duration `yaml:"op_timeout"`
	Retry       RetryConfig   `yaml:"retry"`
}

type EpaycoConfig struct {
	PublicKey       string        `yaml:"public_key" env:"EPAYCO_PUBLIC_KEY"`
	PrivateKey      string        `yaml:"private_key" env:"EPAYCO_PRIVATE_KEY"`
	Test            bool          `yaml:"test" env:"EPAYCO_TEST"`
	ResponseURL     string        `yaml:"response_url" env:"EPAYCO_RESPONSE_URL"`
	ConfirmationURL string        `yaml:"confirmation_url" env:"EPAYCO_CONFIRMATION_URL"`
	ValidationURL   string        `yaml:"validation_url"`
	Timeout         time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	ReconcileAfter    time.Duration `yaml:"reconcile_after"` // minimum age of a paid-but-pending row
	BatchSize         int           `yaml:"batch_size"`
	Workers           int           `yaml:"workers"` // event publisher pool size
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Epayco    EpaycoConfig    `yaml:"epayco"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Load reads the yaml file at path (optional when missing), then .env and
// process environment overrides, then applies defaults and validates.
func Load(path string, dev bool) (*Config, error) {
	cfg, err := Parse(path, dev)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is Load without validation, for tools that only touch the database.
func Parse(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// environment only
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// .env might not exist and that's ok
	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 15*time.Second)
	cfg.HTTP.ShutdownTimeout = orDefault(cfg.HTTP.ShutdownTimeout, 10*time.Second)
	cfg.HTTP.ConfirmRateWindow = orDefault(cfg.HTTP.ConfirmRateWindow, time.Minute)
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = orDefault(cfg.Redis.TTL, time.Hour)
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "academia:events"
	}

	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "COP"
	}
	if cfg.Payment.Country == "" {
		cfg.Payment.Country = "CO"
	}
	if cfg.Payment.TaxRate == "" {
		cfg.Payment.TaxRate = "0.19"
	}
	if cfg.Payment.SuccessCode == "" {
		cfg.Payment.SuccessCode = "1"
	}
	cfg.Payment.OpTimeout = orDefault(cfg.Payment.OpTimeout, 5*time.Second)
	if cfg.Payment.Retry.Attempts <= 0 {
		cfg.Payment.Retry.Attempts = 3
	}
	cfg.Payment.Retry.Initial = orDefault(cfg.Payment.Retry.Initial, 200*time.Millisecond)
	cfg.Payment.Retry.Max = orDefault(cfg.Payment.Retry.Max, 2*time.Second)

	if cfg.Epayco.ValidationURL == "" {
		cfg.Epayco.ValidationURL = "https://secure.epayco.co/validation/v1/reference"
	}
	cfg.Epayco.Timeout = orDefault(cfg.Epayco.Timeout, 10*time.Second)

	cfg.Scheduler.SweepInterval = orDefault(cfg.Scheduler.SweepInterval, time.Hour)
	cfg.Scheduler.ReconcileInterval = orDefault(cfg.Scheduler.ReconcileInterval, 5*time.Minute)
	cfg.Scheduler.ReconcileAfter = orDefault(cfg.Scheduler.ReconcileAfter, time.Minute)
	if cfg.Scheduler.BatchSize <= 0 {
		cfg.Scheduler.BatchSize = 100
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.Epayco.PublicKey == "" {
		return errors.New("epayco.public_key is required")
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// RateLimit is per account per window on the lookup route. 0 disables it.
	RateLimit       int           `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window" env:"RATE_LIMIT_WINDOW"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LEVEL"`       // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"FORMAT"`     // json|console
	Sampling bool   `yaml:"sampling" env:"SAMPLING"` // enable sampling in prod
}

type DatabaseConfig struct {
	Driver      string `yaml:"driver" env:"DRIVER"` // postgres|sqlite
	URL         string `yaml:"url" env:"URL"`
	MaxConns    int32  `yaml:"max_conns" env:"MAX_CONNS"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// RedisConfig is optional; an empty URL runs without cache, lock or rate limiter.
type RedisConfig struct {
	URL      string        `yaml:"url" env:"URL"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

func (r RedisConfig) Enabled() bool { return r.URL != "" }

type WorkerConfig struct {
	BaseURL       string        `yaml:"base_url" env:"BASE_URL"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT"`
	CallbackToken string        `yaml:"callback_token" env:"CALLBACK_TOKEN"`
	Async         bool          `yaml:"async" env:"ASYNC"`
	PoolSize      int           `yaml:"pool_size" env:"POOL_SIZE"`
}

type ResearchConfig struct {
	StrictTransitions bool `yaml:"strict_transitions" env:"STRICT_TRANSITIONS"`
	MaxQueryLength    int  `yaml:"max_query_length" env:"MAX_QUERY_LENGTH"`
}

type CreditsConfig struct {
	FreeDailyCredits int64         `yaml:"free_daily_credits" env:"FREE_DAILY_CREDITS"`
	ResetTimezone    string        `yaml:"reset_timezone" env:"RESET_TIMEZONE"`
	ResetLockTTL     time.Duration `yaml:"reset_lock_ttl" env:"RESET_LOCK_TTL"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Worker   WorkerConfig   `yaml:"worker" envPrefix:"WORKER_"`
	Research ResearchConfig `yaml:"research" envPrefix:"RESEARCH_"`
	Credits  CreditsConfig  `yaml:"credits" envPrefix:"CREDITS_"`
	Auth     AuthConfig     `yaml:"auth" envPrefix:"AUTH_"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (skipped when it does not exist),
// applies environment overrides, then defaults and validation.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Runtime.Dev = dev

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 20 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.RateLimitWindow <= 0 {
		cfg.Server.RateLimitWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Worker.BaseURL == "" {
		cfg.Worker.BaseURL = "http://localhost:5000"
	}
	if cfg.Worker.Timeout <= 0 {
		cfg.Worker.Timeout = 10 * time.Second
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 8
	}
	if cfg.Research.MaxQueryLength <= 0 {
		cfg.Research.MaxQueryLength = 500
	}
	if cfg.Credits.FreeDailyCredits <= 0 {
		cfg.Credits.FreeDailyCredits = 10
	}
	if cfg.Credits.ResetTimezone == "" {
		cfg.Credits.ResetTimezone = "UTC"
	}
	if cfg.Credits.ResetLockTTL <= 0 {
		cfg.Credits.ResetLockTTL = 5 * time.Minute
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Auth.JWTSecret == "" && cfg.Runtime.Dev {
		cfg.Auth.JWTSecret = "dev-only-jwt-secret"
	}
}

// Validate performs minimal validation.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if _, err := time.LoadLocation(c.Credits.ResetTimezone); err != nil {
		return fmt.Errorf("credits.reset_timezone: %w", err)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

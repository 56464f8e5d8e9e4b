// Package config loads the CLI configuration from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/limitless-client/pkg/cache"
	"github.com/Sternrassler/limitless-client/pkg/client"
	"github.com/Sternrassler/limitless-client/pkg/fanout"
	"github.com/Sternrassler/limitless-client/pkg/limitless"
	"github.com/Sternrassler/limitless-client/pkg/logging"
	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
)

// ErrMissingCredential is returned when LIMITLESS_API_KEY is unset or blank.
var ErrMissingCredential = errors.New("LIMITLESS_API_KEY env variable not set")

// Cache backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the process configuration.
type Config struct {
	APIKey         string        `env:"LIMITLESS_API_KEY"`
	BaseURL        string        `env:"LIMITLESS_BASE_URL"        envDefault:"https://play.limitlesstcg.com/api"`
	UserAgent      string        `env:"LIMITLESS_USER_AGENT"      envDefault:"limitless-client/0.1.0"`
	CacheBackend   string        `env:"LIMITLESS_CACHE_BACKEND"   envDefault:"sqlite"`
	CacheDir       string        `env:"LIMITLESS_CACHE_DIR"`
	CacheMode      string        `env:"LIMITLESS_CACHE_MODE"      envDefault:"default"`
	RedisURL       string        `env:"REDIS_URL"                 envDefault:"localhost:6379"`
	MaxConcurrency int           `env:"LIMITLESS_MAX_CONCURRENCY" envDefault:"10"`
	RequestTimeout time.Duration `env:"LIMITLESS_REQUEST_TIMEOUT" envDefault:"30s"`
	Decode         string        `env:"LIMITLESS_DECODE"          envDefault:"strict"`
	LogLevel       string        `env:"LOG_LEVEL"                 envDefault:"info"`
	LogPretty      bool          `env:"LOG_PRETTY"                envDefault:"true"`
}

// Load parses the environment and validates everything except the
// credential, which only the API commands need (see Credential).
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that have a fixed set of values.
func (c Config) Validate() error {
	switch c.CacheBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown cache backend %q (want sqlite, redis or memory)", c.CacheBackend)
	}
	if _, err := cache.ParseMode(c.CacheMode); err != nil {
		return err
	}
	switch limitless.DecodeMode(c.Decode) {
	case limitless.DecodeStrict, limitless.DecodeLoose:
	default:
		return fmt.Errorf("unknown decode mode %q (want strict or loose)", c.Decode)
	}
	if c.MaxConcurrency == 0 || c.MaxConcurrency < fanout.Unbounded {
		return fmt.Errorf("max concurrency must be positive or -1 for unbounded, got %d", c.MaxConcurrency)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Credential returns the access key, or ErrMissingCredential.
func (c Config) Credential() (string, error) {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return "", ErrMissingCredential
	}
	return key, nil
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level, _ = logging.ParseLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}

// Fanout returns the aggregator configuration. Each task is one request, so
// the task timeout follows the request timeout.
func (c Config) Fanout() fanout.Config {
	cfg := fanout.DefaultConfig()
	cfg.MaxConcurrency = c.MaxConcurrency
	cfg.Timeout = c.RequestTimeout
	cfg.Classifier = limitless.ClassifyFailure
	return cfg
}

// Client returns the API client configuration for credential and manager.
func (c Config) Client(credential string, manager *cache.Manager) client.Config {
	cfg := client.DefaultConfig(credential, manager)
	cfg.BaseURL = c.BaseURL
	cfg.UserAgent = c.UserAgent
	// Validated by Load
	cfg.CacheMode, _ = cache.ParseMode(c.CacheMode)
	cfg.RequestTimeout = c.RequestTimeout
	return cfg
}

// OpenStore opens the configured cache backend. Redis is pinged so a bad
// address fails here rather than on the first request.
func (c Config) OpenStore(ctx context.Context) (cache.Store, error) {
	switch c.CacheBackend {
	case BackendMemory:
		return cache.NewMemoryStore(), nil
	case BackendRedis:
		opts, err := redisOptions(c.RedisURL)
		if err != nil {
			return nil, err
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		return cache.NewRedisStore(redisClient), nil
	default:
		return cache.NewSQLiteStore(c.CacheDir)
	}
}

// redisOptions accepts either a redis:// URL or a bare host:port.
func redisOptions(raw string) (*redis.Options, error) {
	if strings.Contains(raw, "://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: raw}, nil
}

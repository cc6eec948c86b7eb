// Package redis caches fetched bar series in Redis so repeated scans inside
// the TTL do not hit the market data providers again.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/model"
)

const (
	defaultSeriesTTL = 30 * time.Minute
	keyPrefix        = "series:"
)

// Config configures the Redis series cache.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // series lifetime, default 30m

	MaxFailures  int           // breaker threshold, default 5
	ResetTimeout time.Duration // breaker cool-off, default 10s
}

// Cache stores JSON-encoded series under series:{provider}:{symbol}.
// Every Redis call goes through a circuit breaker.
type Cache struct {
	client  *goredis.Client
	ttl     time.Duration
	breaker *CircuitBreaker
	log     zerolog.Logger
}

// New connects to Redis, pings it and returns a Cache.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	c := NewWithClient(client, cfg)
	c.log.Info().Str("addr", cfg.Addr).Msg("connected")
	return c, nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *goredis.Client, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultSeriesTTL
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}
	c := &Cache{
		client:  client,
		ttl:     cfg.TTL,
		breaker: NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
		log:     logger.Component("redis"),
	}
	c.breaker.OnStateChange = func(from, to State) {
		c.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker transition")
	}
	return c
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// Breaker exposes the circuit breaker state for metrics.
func (c *Cache) Breaker() *CircuitBreaker { return c.breaker }

// Key returns the cache key of a provider's series for symbol.
func Key(provider, symbol string) string {
	return keyPrefix + provider + ":" + symbol
}

// Get returns the cached series. ok is false on a miss.
func (c *Cache) Get(ctx context.Context, provider, symbol string) (s model.Series, ok bool, err error) {
	var raw []byte
	err = c.breaker.Execute(func() error {
		var gerr error
		raw, gerr = c.client.Get(ctx, Key(provider, symbol)).Bytes()
		if errors.Is(gerr, goredis.Nil) {
			return nil
		}
		return gerr
	})
	if err != nil || raw == nil {
		return model.Series{}, false, err
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.Series{}, false, fmt.Errorf("decode cached %s: %w", symbol, err)
	}
	return s, true, nil
}

// Set stores s with the cache TTL.
func (c *Cache) Set(ctx context.Context, provider string, s model.Series) error {
	payload := s.JSON()
	return c.breaker.Execute(func() error {
		return c.client.Set(ctx, Key(provider, s.Symbol), payload, c.ttl).Err()
	})
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

// ErrEmptyAddress is returned when the Redis address is not configured
var ErrEmptyAddress = errors.New("redis address is required")

const (
	keyPrefix         = "research:content:"
	connectionTimeout = 5 * time.Second
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache shares fetched page content between processes. Freshness is
// enforced by the key expiry set on write.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisCacheFromClient(client, cfg.TTL), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the content cached for url. Lookup and decode errors count as misses.
func (c *RedisCache) Get(ctx context.Context, url string) (*domain.ExtractedContent, bool) {
	data, err := c.client.Get(ctx, keyPrefix+url).Bytes()
	if err != nil {
		return nil, false
	}

	var content domain.ExtractedContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, false
	}
	return &content, true
}

// Set stores content under its URL with the cache TTL
func (c *RedisCache) Set(ctx context.Context, content *domain.ExtractedContent) error {
	if content == nil || content.URL == "" {
		return nil
	}

	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to encode cached content: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+content.URL, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cached content: %w", err)
	}
	return nil
}

// Close releases the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Package cache memoizes model completions in Redis so a rerun of the same
// day does not pay for the same prompt twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

const connectionTimeout = 2 * time.Second

// RedisCache is a ports.CompletionCache backed by string keys with a TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ports.CompletionCache = (*RedisCache)(nil)

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// Dial connects to addr and verifies the connection with a ping.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Get returns the cached value; a missing key is not an error.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Set stores value for the configured TTL. A zero TTL keeps the key forever.
func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// CachedCompletionClient consults the cache before delegating to the model.
// Cache failures degrade to uncached calls. Empty replies and replies the
// validator rejects are returned but never stored.
type CachedCompletionClient struct {
	next     ports.CompletionClient
	cache    ports.CompletionCache
	validate func(reply string) error
	logger   *slog.Logger
}

var _ ports.CompletionClient = (*CachedCompletionClient)(nil)

// Option customizes a CachedCompletionClient.
type Option func(*CachedCompletionClient)

// WithValidator only lets replies for which validate returns nil into the cache.
func WithValidator(validate func(reply string) error) Option {
	return func(c *CachedCompletionClient) { c.validate = validate }
}

// NewCachedCompletionClient decorates next with cache.
func NewCachedCompletionClient(next ports.CompletionClient, cache ports.CompletionCache, logger *slog.Logger, opts ...Option) *CachedCompletionClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &CachedCompletionClient{next: next, cache: cache, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete returns a cached reply for an identical request or calls the model
// and stores its reply.
func (c *CachedCompletionClient) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	key, err := RequestKey(req)
	if err != nil {
		return c.next.Complete(ctx, req)
	}

	if val, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("completion cache read failed", "error", err)
	} else if ok {
		c.logger.Debug("completion cache hit", "key", key)
		return val, nil
	}

	reply, err := c.next.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	if !c.cacheable(reply) {
		return reply, nil
	}
	if err := c.cache.Set(ctx, key, reply); err != nil {
		c.logger.Warn("completion cache write failed", "error", err)
	}
	return reply, nil
}

func (c *CachedCompletionClient) cacheable(reply string) bool {
	if strings.TrimSpace(reply) == "" {
		return false
	}
	if c.validate == nil {
		return true
	}
	if err := c.validate(reply); err != nil {
		c.logger.Debug("completion not cached: reply rejected", "error", err)
		return false
	}
	return true
}

// RequestKey fingerprints every field that influences the reply.
func RequestKey(req domain.CompletionRequest) (string, error) {
	// json.Marshal sorts map keys, so LogitBias hashes deterministically.
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// BeatCatalogCacheKey holds the public beat listing
	BeatCatalogCacheKey = "catalog:beats"
	// ServiceCatalogCacheKey holds the public service listing
	ServiceCatalogCacheKey = "catalog:services"

	// Stripe retries undelivered events for up to three days
	processedEventTTL = 72 * time.Hour
)

// RedisCache wraps a Redis client with JSON helpers.
// A nil *RedisCache is valid: reads miss, writes are dropped.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to redisURL and pings it before returning
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

// Set stores a value in cache with expiration
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// Get decodes the cached value into dest. A miss returns redis.Nil.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c == nil {
		return redis.Nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// GetOrSet returns the cached value for key, or calls fn and caches its result.
// Cache write failures are ignored; fn errors are returned and nothing is cached.
func GetOrSet[T any](ctx context.Context, c *RedisCache, key string, expiration time.Duration, fn func() (T, error)) (T, error) {
	var result T

	if err := c.Get(ctx, key, &result); err == nil {
		return result, nil
	}

	result, err := fn()
	if err != nil {
		return result, err
	}

	_ = c.Set(ctx, key, result, expiration)

	return result, nil
}

// Delete removes keys from cache
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// EventProcessed reports whether a gateway event was already applied
func (c *RedisCache) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	if c == nil || eventID == "" {
		return false, nil
	}
	n, err := c.client.Exists(ctx, processedEventKey(eventID)).Result()
	return n > 0, err
}

// MarkEventProcessed records that a gateway event was applied successfully
func (c *RedisCache) MarkEventProcessed(ctx context.Context, eventID string) error {
	if c == nil || eventID == "" {
		return nil
	}
	return c.client.SetNX(ctx, processedEventKey(eventID), time.Now().Unix(), processedEventTTL).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func processedEventKey(eventID string) string {
	return "stripe:event:" + eventID
}

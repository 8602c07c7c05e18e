package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisKeyPrefix         = "drive:url:"
	errFailedParseRedisFmt = "failed to parse redis url: %w"
	errFailedPingRedisFmt  = "failed to ping redis: %w"
	errFailedSetRedisFmt   = "failed to cache url: %w"
)

// RedisCache shares presigned URLs between service instances. Redis expires entries itself.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the Redis instance at url and verifies it answers
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf(errFailedParseRedisFmt, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf(errFailedPingRedisFmt, err)
	}

	return NewRedisCacheFromClient(client), nil
}

func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get retrieves a URL from Redis. Any Redis failure is a cache miss.
func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	url, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return "", false
	}
	return url, true
}

// Set stores a URL in Redis until expiry
func (r *RedisCache) Set(ctx context.Context, key string, url string, expiry time.Time) error {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, url, ttl).Err(); err != nil {
		return fmt.Errorf(errFailedSetRedisFmt, err)
	}
	return nil
}

// Delete removes a value from Redis cache
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisKeyPrefix+key).Err()
}

// Clear is a no-op: Redis evicts expired keys on its own.
func (r *RedisCache) Clear(ctx context.Context) error {
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

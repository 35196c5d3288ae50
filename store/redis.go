// Package store provides storage backends for windowed quota counters.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript is a Lua script that atomically increments a counter by an arbitrary
// cost and resets its expiration to the full window. Doing this in one script
// ensures the INCRBY and EXPIRE cannot interleave with other clients.
// Returns the new count.
var incrScript = redis.NewScript(`
local count = redis.call('INCRBY', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return count
`)

// Redis is a Redis-backed implementation of Store suitable for distributed
// deployments. Uses a Lua script so the increment and expiry reset are atomic
// across multiple instances in Kubernetes or other distributed environments.
type Redis struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds configuration for Redis connection.
// All fields should be populated explicitly by your application code from environment
// variables, config files, or other sources. Never reads environment variables directly.
type RedisConfig struct {
	// URL is the Redis server address (e.g., "localhost:6379")
	URL string

	// Password for Redis authentication (optional, leave empty if not needed)
	Password string

	// DB is the Redis database number
	DB int

	// Prefix is prepended to all keys (default: "quota:")
	Prefix string
}

// NewRedis creates a Redis store with the given configuration.
// Pings the server to verify connectivity before returning.
func NewRedis(config RedisConfig) (*Redis, error) {
	if config.Prefix == "" {
		config.Prefix = "quota:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.URL,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{
		client: client,
		prefix: config.Prefix,
	}, nil
}

// IncrementBy adds cost to the counter and resets its expiry to the full window.
func (r *Redis) IncrementBy(ctx context.Context, key string, cost int64, window time.Duration) (int64, time.Duration, error) {
	seconds := int64(window.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	count, err := incrScript.Run(ctx, r.client, []string{r.prefix + key}, cost, seconds).Int64()
	if err != nil {
		return 0, 0, fmt.Errorf("redis increment failed: %w", err)
	}

	return count, window, nil
}

// Peek retrieves the current count and remaining TTL without incrementing.
func (r *Redis) Peek(ctx context.Context, key string) (int64, time.Duration, error) {
	fullKey := r.prefix + key

	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, fullKey)
	ttlCmd := pipe.TTL(ctx, fullKey)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, fmt.Errorf("redis peek failed: %w", err)
	}

	count, err := getCmd.Int64()
	if err == redis.Nil {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("redis peek failed: %w", err)
	}

	return count, max(0, ttlCmd.Val()), nil
}

// Reset removes the counter for the given key.
func (r *Redis) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis reset failed: %w", err)
	}
	return nil
}

// Close releases resources held by the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

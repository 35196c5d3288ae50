package usage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed implementation of Store.
// Each user's counters live in one hash keyed by user ID, with fields
// incremented via HINCRBY. Hashes carry no TTL; these are permanent
// aggregates, not windowed counters.
type Redis struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds configuration for Redis connection.
// Populate from environment variables in your application code.
type RedisConfig struct {
	URL      string
	Password string
	DB       int

	// Prefix is prepended to all hash keys (default: "usage:")
	Prefix string
}

// NewRedis creates a Redis usage store with the given configuration.
// Pings the server to verify connectivity before returning.
func NewRedis(config RedisConfig) (*Redis, error) {
	if config.Prefix == "" {
		config.Prefix = "usage:"
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

func (r *Redis) hashKey(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

// Add increments the named field for the user by delta.
func (r *Redis) Add(ctx context.Context, userID int64, field string, delta int64) (int64, error) {
	val, err := r.client.HIncrBy(ctx, r.hashKey(userID), field, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("redis usage add failed: %w", err)
	}
	return val, nil
}

// Get retrieves the current value of the named field for the user.
func (r *Redis) Get(ctx context.Context, userID int64, field string) (int64, error) {
	val, err := r.client.HGet(ctx, r.hashKey(userID), field).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis usage get failed: %w", err)
	}
	return val, nil
}

// Close releases resources held by the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

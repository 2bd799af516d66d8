// Package redisstore keeps short-lived HTTP state in Redis: rate-limit counters and
// cached idempotent responses.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateCounter struct {
	client *redis.Client
	prefix string
}

func NewRateCounter(client *redis.Client) *RateCounter {
	return &RateCounter{client: client, prefix: "ratelimit:"}
}

// Incr counts a hit in the current fixed window and reports how long the window
// has left.
func (c *RateCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	k := c.prefix + key
	count, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, k, window).Err(); err != nil {
			return count, window, err
		}
		return count, window, nil
	}
	ttl, err := c.client.TTL(ctx, k).Result()
	if err != nil {
		return count, window, err
	}
	if ttl < 0 {
		// A key without expiry would block forever.
		_ = c.client.Expire(ctx, k, window).Err()
		ttl = window
	}
	return count, ttl, nil
}

type IdempotencyStore struct {
	client *redis.Client
}

func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Get returns "" when the key is unknown.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *IdempotencyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

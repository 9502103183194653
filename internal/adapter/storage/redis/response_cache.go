package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ResponseCache implements ports.ResponseCache using Redis: resolved
// webhook responses cached by order code so replays short-circuit
// without touching PostgreSQL.
type ResponseCache struct {
	client *goredis.Client
	prefix string
}

// NewResponseCache creates a new Redis-backed webhook response cache.
func NewResponseCache(client *goredis.Client) *ResponseCache {
	return &ResponseCache{
		client: client,
		prefix: "webhook:resolved:",
	}
}

// Get retrieves a cached resolved response by order code.
// Returns nil, nil if the key does not exist.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis response cache get: %w", err)
	}
	return val, nil
}

// Set stores a resolved response with TTL.
func (c *ResponseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis response cache set: %w", err)
	}
	return nil
}

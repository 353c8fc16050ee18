package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the connection handle for the limiter's Redis backend. It owns
// the connection lifecycle; script execution goes through Raw.
type Client struct {
	redis *redis.Client
}

// NewClient creates a new Redis client wrapper
func NewClient(redisClient *redis.Client) *Client {
	return &Client{redis: redisClient}
}

// Raw returns the underlying go-redis client for components that need it
// directly, such as the rate limiter's script runner.
func (c *Client) Raw() *redis.Client {
	return c.redis
}

// Health checks connectivity to the Redis server
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close closes the underlying connection
func (c *Client) Close() error {
	return c.redis.Close()
}

// Package redis — Redis-реализация storage.TokenStore.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedKeyPrefix = "auth:revoked:"
	loginKeyPrefix   = "auth:login:"
)

type Client struct {
	rdb *redis.Client
}

// New подключается к Redis по URL и проверяет соединение.
func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.rdb.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis: revoke token: %w", err)
	}
	return nil
}

func (c *Client) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check revoked: %w", err)
	}
	return n > 0, nil
}

func (c *Client) IncrLoginAttempt(ctx context.Context, key string, window time.Duration) (int, error) {
	redisKey := loginKeyPrefix + key
	n, err := c.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: incr login attempt: %w", err)
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, redisKey, window).Err(); err != nil {
			return int(n), fmt.Errorf("redis: expire login attempt: %w", err)
		}
	}
	return int(n), nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

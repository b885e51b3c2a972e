// Package memory — in-memory реализация storage.TokenStore для dev-режима и тестов.
package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count     int
	expiresAt time.Time
}

type Client struct {
	mu       sync.Mutex
	revoked  map[string]time.Time
	attempts map[string]*entry
}

func New() *Client {
	return &Client{
		revoked:  make(map[string]time.Time),
		attempts: make(map[string]*entry),
	}
}

func (c *Client) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (c *Client) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(c.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (c *Client) IncrLoginAttempt(_ context.Context, key string, window time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.attempts[key]
	if !ok || time.Now().After(e.expiresAt) {
		e = &entry{expiresAt: time.Now().Add(window)}
		c.attempts[key] = e
	}
	e.count++
	return e.count, nil
}

func (c *Client) Close() error { return nil }

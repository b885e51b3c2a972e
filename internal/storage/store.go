// Package storage — быстрое состояние (Redis, in-memory): отзыв токенов и
// rate limit входа.
package storage

import (
	"context"
	"time"
)

// TokenStore хранит отозванные jti и счётчики попыток входа. Реализации:
// redis.Client (production) и memory.Client (dev-режим, тесты).
type TokenStore interface {
	// RevokeToken помечает jti отозванным на ttl (до естественного истечения токена).
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)

	// IncrLoginAttempt увеличивает счётчик попыток входа по ключу (email или IP)
	// и возвращает новое значение; первое увеличение заводит окно на window.
	IncrLoginAttempt(ctx context.Context, key string, window time.Duration) (int, error)

	Close() error
}

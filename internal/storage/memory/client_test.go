package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevokeToken(t *testing.T) {
	c := New()
	ctx := context.Background()

	revoked, err := c.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, c.RevokeToken(ctx, "jti-1", time.Minute))
	revoked, err = c.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Истёкший отзыв перестаёт действовать.
	require.NoError(t, c.RevokeToken(ctx, "jti-2", -time.Second))
	revoked, err = c.IsTokenRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestIncrLoginAttempt(t *testing.T) {
	c := New()
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		n, err := c.IncrLoginAttempt(ctx, "user@example.com", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err := c.IncrLoginAttempt(ctx, "other@example.com", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

package ratelimit

import (
	"context"
	"testing"

	"github.com/smallbiznis/clearline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledGuardAlwaysGrants(t *testing.T) {
	g := NewGuard(config.Config{}, nil)
	ctx := context.Background()

	token, ok, err := g.LockShipment(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)
	require.NoError(t, g.UnlockShipment(ctx, 1, 2, token))

	allowed, err := g.AllowReasoning(ctx, 1)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNilGuardAlwaysGrants(t *testing.T) {
	var g *Guard
	_, ok, err := g.LockShipment(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, g.Enabled())
}

func TestNewLockerNilClient(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
	assert.Nil(t, NewTokenBucket(nil))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, "50s", bucketTTL(0.2, 5).String())
	assert.Equal(t, "1s", bucketTTL(100, 1).String())
}

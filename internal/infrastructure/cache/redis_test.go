package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/config"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := NewRedisCache(config.RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c, mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "trigger:1", "flow-a", time.Minute))

	val, err := c.Get(ctx, "trigger:1")
	require.NoError(t, err)
	assert.Equal(t, "flow-a", val)
}

func TestRedisCache_Get_Missing(t *testing.T) {
	c, _ := newTestCache(t)

	val, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestRedisCache_Allow(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.Allow(ctx, "rl:sender", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d should pass", i+1)
	}

	ok, err := c.Allow(ctx, "rl:sender", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "fourth hit should be limited")

	// Window expiry resets the counter.
	mr.FastForward(2 * time.Minute)

	ok, err = c.Allow(ctx, "rl:sender", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache(config.RedisConfig{URL: "not-a-url"})
	assert.Error(t, err)
}

func TestNewRedisCache_Unconfigured(t *testing.T) {
	_, err := NewRedisCache(config.RedisConfig{})
	assert.Error(t, err)
}

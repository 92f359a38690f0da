package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyHash(t *testing.T) {
	h := KeyHash("hello world")
	assert.Len(t, h, 64)
	assert.Equal(t, h, KeyHash("hello world"))
	assert.NotEqual(t, h, KeyHash("hello world!"))
}

func TestRedisTier_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	ctx := context.Background()
	cfg := DefaultRedisConfig()
	cfg.Addr = addr
	cfg.KeyPrefix = "synapse:test:" + time.Now().Format("150405.000") + ":"
	cfg.TTL = time.Minute

	tier, err := NewRedisTier(ctx, cfg)
	require.NoError(t, err)
	defer tier.Close()

	_, ok, err := tier.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tier.Set(ctx, "hello", emb(0.5, 0.25)))
	got, ok, err := tier.Get(ctx, "hello")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, emb(0.5, 0.25), got)
}

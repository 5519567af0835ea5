package rerank

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryScoreCache(t *testing.T) {
	t.Run("Set and get round-trip", func(t *testing.T) {
		cache := NewMemoryScoreCache(16, time.Minute)
		cache.Set(context.Background(), "test query", 1, 0.8)

		score, ok := cache.Get(context.Background(), "test query", 1)
		assert.True(t, ok, "Expected cache hit for stored pair")
		assert.InDelta(t, 0.8, score, 0.0001)
	})

	t.Run("Miss for unknown pair", func(t *testing.T) {
		cache := NewMemoryScoreCache(16, time.Minute)
		cache.Set(context.Background(), "test query", 1, 0.8)

		_, ok := cache.Get(context.Background(), "test query", 2)
		assert.False(t, ok, "Expected miss for different chunk")
		_, ok = cache.Get(context.Background(), "different query", 1)
		assert.False(t, ok, "Expected miss for different query")
	})

	t.Run("Entries expire after the TTL", func(t *testing.T) {
		cache := NewMemoryScoreCache(16, 10*time.Millisecond)
		cache.Set(context.Background(), "test query", 1, 0.8)

		assert.Eventually(t, func() bool {
			_, ok := cache.Get(context.Background(), "test query", 1)
			return !ok
		}, time.Second, 10*time.Millisecond, "Expected entry to expire")
	})

	t.Run("Invalid size falls back to default capacity", func(t *testing.T) {
		cache := NewMemoryScoreCache(0, time.Minute)
		require.NotNil(t, cache)
		cache.Set(context.Background(), "test query", 1, 0.8)
		_, ok := cache.Get(context.Background(), "test query", 1)
		assert.True(t, ok)
	})
}

func TestRedisScoreCache(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	t.Run("Set and get round-trip", func(t *testing.T) {
		cache := NewRedisScoreCache(client, time.Minute)
		cache.Set(context.Background(), "test query", 1, 0.8)

		score, ok := cache.Get(context.Background(), "test query", 1)
		assert.True(t, ok, "Expected cache hit for stored pair")
		assert.InDelta(t, 0.8, score, 0.0001)
	})

	t.Run("Miss for unknown pair", func(t *testing.T) {
		cache := NewRedisScoreCache(client, time.Minute)
		_, ok := cache.Get(context.Background(), "never stored", 99)
		assert.False(t, ok, "Expected miss for unknown pair")
	})

	t.Run("Entries expire after the TTL", func(t *testing.T) {
		cache := NewRedisScoreCache(client, time.Minute)
		cache.Set(context.Background(), "expiring query", 2, 0.4)

		server.FastForward(2 * time.Minute)
		_, ok := cache.Get(context.Background(), "expiring query", 2)
		assert.False(t, ok, "Expected entry to expire")
	})

	t.Run("Unparseable value is treated as a miss", func(t *testing.T) {
		cache := NewRedisScoreCache(client, time.Minute)
		require.NoError(t, server.Set(cacheKey("broken query", 3), "not-a-float"))

		_, ok := cache.Get(context.Background(), "broken query", 3)
		assert.False(t, ok, "Expected unparseable value to be a miss")
	})

	t.Run("Unavailable server is treated as a miss", func(t *testing.T) {
		cache := NewRedisScoreCache(client, time.Minute)
		server.SetError("connection refused")
		defer server.SetError("")

		_, ok := cache.Get(context.Background(), "test query", 1)
		assert.False(t, ok, "Expected server error to be a miss")
		cache.Set(context.Background(), "test query", 4, 0.9)
	})
}

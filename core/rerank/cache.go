package rerank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// ScoreCache caches AI judgment scores per (query, chunk) pair for a
// bounded TTL. Lookups and stores are best-effort, a failing cache never
// fails a rerank.
type ScoreCache interface {
	Get(ctx context.Context, query string, chunkID int64) (float64, bool)
	Set(ctx context.Context, query string, chunkID int64, score float64)
}

func cacheKey(query string, chunkID int64) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("rerank:%s:%d", hex.EncodeToString(sum[:]), chunkID)
}

// MemoryScoreCache is an in-process TTL cache backed by an expirable LRU
type MemoryScoreCache struct {
	cache *expirable.LRU[string, float64]
}

// NewMemoryScoreCache creates a memory cache with the given capacity and
// entry TTL
func NewMemoryScoreCache(size int, ttl time.Duration) *MemoryScoreCache {
	if size <= 0 {
		size = 1024
	}
	return &MemoryScoreCache{
		cache: expirable.NewLRU[string, float64](size, nil, ttl),
	}
}

// Get returns the cached score for a (query, chunk) pair
func (c *MemoryScoreCache) Get(ctx context.Context, query string, chunkID int64) (float64, bool) {
	return c.cache.Get(cacheKey(query, chunkID))
}

// Set stores the score for a (query, chunk) pair
func (c *MemoryScoreCache) Set(ctx context.Context, query string, chunkID int64, score float64) {
	c.cache.Add(cacheKey(query, chunkID), score)
}

// RedisScoreCache shares judgment scores across processes through Redis.
// Errors are swallowed, a miss is always a safe answer.
type RedisScoreCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisScoreCache creates a Redis-backed score cache
func NewRedisScoreCache(client *redis.Client, ttl time.Duration) *RedisScoreCache {
	return &RedisScoreCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached score for a (query, chunk) pair
func (c *RedisScoreCache) Get(ctx context.Context, query string, chunkID int64) (float64, bool) {
	value, err := c.client.Get(ctx, cacheKey(query, chunkID)).Result()
	if err != nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return score, true
}

// Set stores the score for a (query, chunk) pair with the configured TTL
func (c *RedisScoreCache) Set(ctx context.Context, query string, chunkID int64, score float64) {
	c.client.Set(ctx, cacheKey(query, chunkID), strconv.FormatFloat(score, 'f', -1, 64), c.ttl)
}

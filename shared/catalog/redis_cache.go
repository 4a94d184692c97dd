package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"transparencia-backend/shared/logger"
)

const redisKeyPrefix = "catalog:descendants:"

// RedisCache shares descendant closures between service replicas
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache creates a cache backed by client with the given entry ttl
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultDescendantTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func redisKey(id uint) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, id)
}

func (c *RedisCache) Get(ctx context.Context, id uint) ([]uint, bool) {
	raw, err := c.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.L().Warn("descendant cache read failed", "catalog_id", id, "error", err)
		}
		return nil, false
	}
	var ids []uint
	if err := json.Unmarshal(raw, &ids); err != nil {
		logger.L().Warn("descendant cache entry corrupt", "catalog_id", id, "error", err)
		return nil, false
	}
	return ids, true
}

func (c *RedisCache) Set(ctx context.Context, id uint, ids []uint) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, redisKey(id), raw, c.ttl).Err(); err != nil {
		logger.L().Warn("descendant cache write failed", "catalog_id", id, "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	keys := make([]string, 0, 32)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.L().Warn("descendant cache scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.L().Warn("descendant cache invalidation failed", "error", err)
	}
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chef-session/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "chef:recipes:"

// RedisCache Redis 食譜快取，多個實例可共用
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ RecipeCache = (*RedisCache)(nil)

// NewRedisCache 創建 Redis 快取，ttl 為 0 表示不過期
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get 獲取緩存
func (s *RedisCache) Get(ctx context.Context, key string) ([]common.Recipe, bool, error) {
	data, err := s.client.Get(ctx, s.generateKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			common.LogCacheMiss("recipes", key)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache: %w", err)
	}

	var recipes []common.Recipe
	if err := common.ParseJSONBytes(data, &recipes); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cache: %w", err)
	}

	common.LogCacheHit("recipes", key)
	return recipes, true, nil
}

// Set 設置緩存
func (s *RedisCache) Set(ctx context.Context, key string, recipes []common.Recipe) error {
	data, err := json.Marshal(recipes)
	if err != nil {
		return fmt.Errorf("failed to marshal recipes: %w", err)
	}

	if err := s.client.Set(ctx, s.generateKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Purge 刪除所有食譜快取
func (s *RedisCache) Purge(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache key: %w", err)
		}
	}
	return iter.Err()
}

// Close Redis 連線由外部管理
func (s *RedisCache) Close() error {
	return nil
}

// generateKey 生成緩存鍵
func (s *RedisCache) generateKey(key string) string {
	return redisKeyPrefix + key
}

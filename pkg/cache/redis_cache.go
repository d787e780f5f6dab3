package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleet-alerts/pkg/redis"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCacheManager implements CacheManager on top of the shared Redis client.
type RedisCacheManager struct {
	client *redis.Client
	config CacheConfig
	logger *zap.Logger
	stats  *cacheStats
}

type cacheStats struct {
	mu            sync.RWMutex
	totalHits     int64
	totalMisses   int64
	evictionCount int64
}

func NewRedisCacheManager(client *redis.Client, config CacheConfig, logger *zap.Logger) *RedisCacheManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCacheManager{
		client: client,
		config: config,
		logger: logger.Named("cache"),
		stats:  &cacheStats{},
	}
}

func (r *RedisCacheManager) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.GetClient().Get(ctx, r.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			r.recordMiss()
			return false, nil
		}
		return false, fmt.Errorf("failed to get %s from cache: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached %s: %w", key, err)
	}

	r.recordHit()
	return true, nil
}

func (r *RedisCacheManager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	cacheKey := r.buildKey(key)
	if err := r.client.GetClient().Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in cache: %w", key, err)
	}

	if len(tags) > 0 {
		if err := r.tagKey(ctx, cacheKey, ttl, tags...); err != nil {
			// the value is cached; it just will not be reachable through the tag
			r.logger.Warn("failed to tag cache key", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return nil
}

func (r *RedisCacheManager) Delete(ctx context.Context, key string) error {
	return r.client.GetClient().Del(ctx, r.buildKey(key)).Err()
}

// InvalidateByTag removes every key stored under the tag.
func (r *RedisCacheManager) InvalidateByTag(ctx context.Context, tag string) error {
	tagKey := r.buildTagKey(tag)

	keys, err := r.client.GetClient().SMembers(ctx, tagKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get keys for tag %s: %w", tag, err)
	}

	pipe := r.client.GetClient().Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	pipe.Del(ctx, tagKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate keys for tag %s: %w", tag, err)
	}

	r.stats.mu.Lock()
	r.stats.evictionCount += int64(len(keys))
	r.stats.mu.Unlock()
	return nil
}

func (r *RedisCacheManager) GetCacheStats() CacheStats {
	r.stats.mu.RLock()
	hits := r.stats.totalHits
	misses := r.stats.totalMisses
	evictions := r.stats.evictionCount
	r.stats.mu.RUnlock()

	stats := CacheStats{
		TotalHits:     hits,
		TotalMisses:   misses,
		EvictionCount: evictions,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
		stats.MissRate = float64(misses) / float64(total)
	}
	return stats
}

func (r *RedisCacheManager) HealthCheck(ctx context.Context) error {
	return r.client.GetClient().Ping(ctx).Err()
}

func (r *RedisCacheManager) tagKey(ctx context.Context, cacheKey string, ttl time.Duration, tags ...string) error {
	pipe := r.client.GetClient().Pipeline()
	for _, tag := range tags {
		tagKey := r.buildTagKey(tag)
		pipe.SAdd(ctx, tagKey, cacheKey)
		// tag sets outlive their members so a late invalidation still finds them
		pipe.Expire(ctx, tagKey, ttl*2)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCacheManager) buildKey(key string) string {
	return r.config.KeyPrefix + key
}

func (r *RedisCacheManager) buildTagKey(tag string) string {
	return r.config.TagPrefix + tag
}

func (r *RedisCacheManager) recordHit() {
	r.stats.mu.Lock()
	r.stats.totalHits++
	r.stats.mu.Unlock()
}

func (r *RedisCacheManager) recordMiss() {
	r.stats.mu.Lock()
	r.stats.totalMisses++
	r.stats.mu.Unlock()
}

package cache

import (
	"context"
	"time"
)

// CacheManager stores JSON-encoded values with optional tags for group invalidation.
type CacheManager interface {
	// Get decodes the cached value into dest. It reports false on a miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error
	Delete(ctx context.Context, key string) error
	InvalidateByTag(ctx context.Context, tag string) error

	GetCacheStats() CacheStats
	HealthCheck(ctx context.Context) error
}

type CacheStats struct {
	HitRate       float64 `json:"hitRate"`
	MissRate      float64 `json:"missRate"`
	TotalHits     int64   `json:"totalHits"`
	TotalMisses   int64   `json:"totalMisses"`
	EvictionCount int64   `json:"evictionCount"`
}

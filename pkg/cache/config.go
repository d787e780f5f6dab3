package cache

import "time"

// CacheConfig holds TTLs and key layout for the Redis cache.
type CacheConfig struct {
	StatsTTL  time.Duration `json:"statsTTL"`
	KeyPrefix string        `json:"keyPrefix"`
	TagPrefix string        `json:"tagPrefix"`
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		StatsTTL:  30 * time.Second,
		KeyPrefix: "fleet:cache:",
		TagPrefix: "fleet:tag:",
	}
}

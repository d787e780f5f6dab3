package ratelimit

import (
	"context"
	"fmt"
	"time"

	"fleet-alerts/pkg/redis"

	goredis "github.com/redis/go-redis/v9"
)

// fixed window counter; returns {allowed, ms until reset}
var windowScript = goredis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[2])
		ttl = tonumber(ARGV[2])
	end
	if count > tonumber(ARGV[1]) then
		return {0, ttl}
	end
	return {1, ttl}
`)

// RedisLimiter shares request windows between every instance of the API.
type RedisLimiter struct {
	client *redis.Client
	config *Config
}

func NewRedisLimiter(client *redis.Client, config *Config) *RedisLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &RedisLimiter{client: client, config: config}
}

func (r *RedisLimiter) Allow(ctx context.Context, clientID, category string) (bool, time.Duration, error) {
	if !r.config.Enabled {
		return true, 0, nil
	}

	limit := r.config.LimitFor(category)
	key := fmt.Sprintf("%s%s:%s", r.config.KeyPrefix, category, clientID)

	result, err := windowScript.Run(ctx, r.client.GetClient(), []string{key},
		limit.Requests,
		limit.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("unexpected rate limit script result %v", result)
	}

	if result[0] == 1 {
		return true, 0, nil
	}
	return false, time.Duration(result[1]) * time.Millisecond, nil
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLockNotAcquired = errors.New("redis lock not acquired")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker hands out mutually exclusive leases on string keys across processes.
// A lease is refreshed while held and only its owner's token can release it.
type Locker struct {
	client     *Client
	ttl        time.Duration
	retryEvery time.Duration
	prefix     string
	logger     *zap.Logger
}

func NewLocker(client *Client, ttl time.Duration, logger *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locker{
		client:     client,
		ttl:        ttl,
		retryEvery: 100 * time.Millisecond,
		prefix:     "fleet:lock:",
		logger:     logger.Named("redis-lock"),
	}
}

// Lock blocks until the lease is held or ctx is done. The returned func releases it.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	release, _, err := l.LockLease(ctx, key)
	return release, err
}

// LockLease is Lock plus a channel closed when the lease is lost while still
// held: another owner took the key, or refreshes failed for a whole TTL.
func (l *Locker) LockLease(ctx context.Context, key string) (func(), <-chan struct{}, error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.GetClient().SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, fmt.Errorf("%w: %s: %v", ErrLockNotAcquired, key, ctx.Err())
			}
			return nil, nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrLockNotAcquired, key, ctx.Err())
		case <-time.After(l.retryEvery):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	lost := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, done, lost)

	released := false
	return func() {
		if released {
			return
		}
		released = true
		close(stop)
		<-done

		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client.GetClient(), []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, lost, nil
}

func (l *Locker) keepAlive(redisKey, token string, stop <-chan struct{}, done, lost chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	refreshed := time.Now()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			n, err := refreshScript.Run(ctx, l.client.GetClient(), []string{redisKey}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				l.logger.Warn("failed to refresh lock", zap.String("key", redisKey), zap.Error(err))
				if time.Since(refreshed) < l.ttl {
					continue
				}
				n = 0
			}
			if n == 0 {
				l.logger.Warn("lock lost before release", zap.String("key", redisKey))
				close(lost)
				return
			}
			refreshed = time.Now()
		}
	}
}

package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalLocker serializes holders of the same key within one process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	slot := l.slot(key)

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrLockNotAcquired, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	return slot
}

type chainLocker []Locker

// ChainLockers acquires every locker in order and releases them in reverse.
// Putting the in-process locker first keeps local contention off Redis.
func ChainLockers(lockers ...Locker) Locker {
	var chain chainLocker
	for _, l := range lockers {
		if l != nil {
			chain = append(chain, l)
		}
	}
	return chain
}

func (c chainLocker) Lock(ctx context.Context, key string) (func(), error) {
	release, _, err := c.LockLease(ctx, key)
	return release, err
}

// LockLease reports the loss of any lease in the chain.
func (c chainLocker) LockLease(ctx context.Context, key string) (func(), <-chan struct{}, error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	var losses []<-chan struct{}
	for _, l := range c {
		release, lost, err := Acquire(ctx, l, key)
		if err != nil {
			releaseAll()
			return nil, nil, err
		}
		releases = append(releases, release)
		if lost != nil {
			losses = append(losses, lost)
		}
	}

	var lost <-chan struct{}
	switch len(losses) {
	case 0:
	case 1:
		lost = losses[0]
	default:
		merged := make(chan struct{})
		stop := make(chan struct{})
		var mergeOnce sync.Once
		for _, ch := range losses {
			go func(ch <-chan struct{}) {
				select {
				case <-ch:
					mergeOnce.Do(func() { close(merged) })
				case <-stop:
				}
			}(ch)
		}
		lost = merged
		prev := releaseAll
		releaseAll = func() {
			close(stop)
			prev()
		}
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, lost, nil
}

type boundedLocker struct {
	Locker
	wait time.Duration
}

// WithWait caps how long Lock may block on l. A non-positive wait returns l.
func WithWait(l Locker, wait time.Duration) Locker {
	if wait <= 0 {
		return l
	}
	return boundedLocker{Locker: l, wait: wait}
}

func (b boundedLocker) Lock(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, b.wait)
	defer cancel()
	return b.Locker.Lock(ctx, key)
}

// LockLease bounds only the wait. The lease itself outlives the timeout.
func (b boundedLocker) LockLease(ctx context.Context, key string) (func(), <-chan struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, b.wait)
	defer cancel()
	return Acquire(ctx, b.Locker, key)
}

// Acquire locks key on l. The lost channel is nil unless l is a LeaseLocker,
// in which case it is closed when the lease is lost while held.
func Acquire(ctx context.Context, l Locker, key string) (func(), <-chan struct{}, error) {
	if ll, ok := l.(LeaseLocker); ok {
		return ll.LockLease(ctx, key)
	}
	release, err := l.Lock(ctx, key)
	return release, nil, err
}

func leaseLost(lost <-chan struct{}) bool {
	select {
	case <-lost:
		return true
	default:
		return false
	}
}

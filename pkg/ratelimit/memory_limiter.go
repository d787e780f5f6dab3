package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start  time.Time
	length time.Duration
	count  int
}

// MemoryLimiter keeps fixed request windows in process memory. It is used when
// no Redis is configured.
type MemoryLimiter struct {
	config  *Config
	now     func() time.Time
	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryLimiter(config *Config) *MemoryLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &MemoryLimiter{
		config:  config,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, clientID, category string) (bool, time.Duration, error) {
	if !m.config.Enabled {
		return true, 0, nil
	}

	limit := m.config.LimitFor(category)
	key := category + ":" + clientID
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= limit.Window {
		m.prune(now)
		w = &window{start: now, length: limit.Window}
		m.windows[key] = w
	}

	w.count++
	if w.count > limit.Requests {
		return false, w.start.Add(limit.Window).Sub(now), nil
	}
	return true, 0, nil
}

// prune drops windows that ended; callers hold mu.
func (m *MemoryLimiter) prune(now time.Time) {
	for key, w := range m.windows {
		if now.Sub(w.start) >= w.length {
			delete(m.windows, key)
		}
	}
}

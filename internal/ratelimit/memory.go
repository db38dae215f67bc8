package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is a per-process fixed window limiter.
type Memory struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	now     func() time.Time
	clients map[string]*clientBucket
}

type clientBucket struct {
	count     int
	windowEnd time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.clients[key]

	if !ok || !now.Before(b.windowEnd) {
		m.clients[key] = &clientBucket{
			count:     1,
			windowEnd: now.Add(m.window),
		}
		m.sweep(now)

		return Decision{Allowed: true, Limit: m.limit, Remaining: m.limit - 1}, nil
	}

	if b.count >= m.limit {
		retryAfter := b.windowEnd.Sub(now)

		if retryAfter < 0 {
			retryAfter = 0
		}

		return Decision{Allowed: false, Limit: m.limit, RetryAfter: retryAfter}, nil
	}

	b.count++
	return Decision{Allowed: true, Limit: m.limit, Remaining: m.limit - b.count}, nil
}

// sweep drops expired buckets once the map grows; caller holds mu.
func (m *Memory) sweep(now time.Time) {
	if len(m.clients) < 1024 {
		return
	}
	for k, b := range m.clients {
		if !now.Before(b.windowEnd) {
			delete(m.clients, k)
		}
	}
}

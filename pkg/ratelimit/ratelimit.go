// Package ratelimit provides fixed-window request limiters keyed by an
// arbitrary string (usually the client IP). The in-memory limiter is the
// default; the Redis limiter is used when the deployment runs more than one
// instance.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter reports whether one more request under the key fits in the window.
type Limiter interface {
	Allow(key string, limit int, window time.Duration) bool
}

type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count     int
	windowEnd time.Time
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*bucket)}
}

func (m *Memory) Allow(key string, limit int, window time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	b, ok := m.buckets[key]
	if !ok || now.After(b.windowEnd) {
		m.buckets[key] = &bucket{count: 1, windowEnd: now.Add(window)}
		return true
	}
	if b.count >= limit {
		return false
	}
	b.count++
	return true
}

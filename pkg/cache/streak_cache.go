// Package cache holds the last-known-good streak snapshots served when the
// database cannot answer.
package cache

import (
	"context"
	"sync"
	"time"

	"muscleai_backend/pkg/streak"
)

type Entry struct {
	Snapshot streak.Snapshot `json:"snapshot"`
	CachedAt time.Time       `json:"cached_at"`
}

type StreakCache interface {
	Get(ctx context.Context, userID string) (Entry, bool, error)
	Set(ctx context.Context, userID string, entry Entry) error
	Delete(ctx context.Context, userID string) error
}

// Memory is a process-local StreakCache used when Redis is not configured.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]Entry
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

func (m *Memory) Get(ctx context.Context, userID string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[userID]
	if !ok {
		return Entry{}, false, nil
	}
	if m.ttl > 0 && m.now().Sub(e.CachedAt) > m.ttl {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (m *Memory) Set(ctx context.Context, userID string, entry Entry) error {
	m.mu.Lock()
	m.entries[userID] = entry
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	delete(m.entries, userID)
	m.mu.Unlock()
	return nil
}

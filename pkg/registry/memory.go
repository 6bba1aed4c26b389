package registry

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Registry. Separate processes do not share state, so
// it only suits single-instance deployments and tests.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

// NewMemory creates an in-memory registry. Entries older than ttl are treated
// as absent; a zero ttl keeps entries until removed.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

func (m *Memory) Insert(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.pruneLocked(now)

	var expiresAt time.Time
	if m.ttl > 0 {
		expiresAt = now.Add(m.ttl)
	}
	m.entries[HashToken(token)] = expiresAt
	return nil
}

func (m *Memory) Contains(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := HashToken(token)
	expiresAt, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if !expiresAt.IsZero() && !m.now().Before(expiresAt) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

func (m *Memory) Remove(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, HashToken(token))
	return nil
}

// Len returns the number of stored entries, including any not yet pruned.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) pruneLocked(now time.Time) {
	for key, expiresAt := range m.entries {
		if !expiresAt.IsZero() && !now.Before(expiresAt) {
			delete(m.entries, key)
		}
	}
}

package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryEntry pairs an expiry with the token that currently owns the lock,
// so Release can refuse to drop a lease someone else has since re-acquired.
type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryMutex is an in-process fake of Mutex for tests: TTL-based entries
// with a background sweep, exposing the same wait/lease semantics and
// token-checked release as the Redis adapter.
type MemoryMutex struct {
	mu    sync.Mutex
	locks map[string]*memoryEntry
	stop  chan struct{}
}

// NewMemoryMutex creates a MemoryMutex and starts its background cleanup
// goroutine. Call Stop() during test teardown to avoid leaking it.
func NewMemoryMutex() *MemoryMutex {
	m := &MemoryMutex{
		locks: make(map[string]*memoryEntry),
		stop:  make(chan struct{}),
	}
	go m.cleanupExpired()
	return m
}

var _ Mutex = (*MemoryMutex)(nil)

func (m *MemoryMutex) tryOnce(key string, lease time.Duration) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.locks[key]; exists && time.Now().Before(entry.expiresAt) {
		return false, ""
	}
	token := uuid.New().String()
	m.locks[key] = &memoryEntry{token: token, expiresAt: time.Now().Add(lease)}
	return true, token
}

func (m *MemoryMutex) TryAcquire(ctx context.Context, key string, wait, lease time.Duration) (bool, string, error) {
	deadline := time.Now().Add(wait)
	for {
		if ok, token := m.tryOnce(key, lease); ok {
			return true, token, nil
		}
		if time.Now().After(deadline) {
			return false, "", nil
		}
		select {
		case <-ctx.Done():
			return false, "", ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (m *MemoryMutex) Release(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.locks[key]; ok && entry.token == token {
		delete(m.locks, key)
	}
	return nil
}

func (m *MemoryMutex) IsLocked(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[key]
	return ok && time.Now().Before(entry.expiresAt), nil
}

func (m *MemoryMutex) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for key, entry := range m.locks {
				if now.After(entry.expiresAt) {
					delete(m.locks, key)
				}
			}
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}

// Stop signals the background cleanup goroutine to exit.
func (m *MemoryMutex) Stop() {
	close(m.stop)
}

package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/restormel-core/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

type mockLockHolder struct {
	token  string
	expiry time.Time
}

// MockDistributedLock is an in-memory DistributedLock with optional hooks
type MockDistributedLock struct {
	mu       sync.Mutex
	locks    map[string]mockLockHolder
	acquired []string
	seq      int

	// Custom behavior hooks (optional)
	AcquireFn func(name string, ttl time.Duration) (bool, error)
	ReleaseFn func(name, token string) error
	PingFn    func() error
}

// NewMockDistributedLock creates a new mock distributed lock
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{
		locks: make(map[string]mockLockHolder),
	}
}

// Acquire takes the named lock unless an unexpired holder exists
func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	if m.AcquireFn != nil {
		acquired, err := m.AcquireFn(name, ttl)
		if err != nil || !acquired {
			return "", false, err
		}
		return "hook-token", true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, held := m.locks[name]; held && time.Now().Before(h.expiry) {
		return "", false, nil
	}

	m.seq++
	token := fmt.Sprintf("token-%d", m.seq)
	m.locks[name] = mockLockHolder{token: token, expiry: time.Now().Add(ttl)}
	m.acquired = append(m.acquired, name)
	return token, true, nil
}

// Release frees the named lock if token still holds it
func (m *MockDistributedLock) Release(ctx context.Context, name, token string) error {
	if m.ReleaseFn != nil {
		return m.ReleaseFn(name, token)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, held := m.locks[name]; held && h.token == token {
		delete(m.locks, name)
	}
	return nil
}

// Ping reports backend health
func (m *MockDistributedLock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// Helper methods for testing

// IsHeld reports whether a lock is currently held
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, held := m.locks[name]
	return held && time.Now().Before(h.expiry)
}

// SetLockHeld forces a lock to be held by someone else
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[name] = mockLockHolder{token: "other-holder", expiry: time.Now().Add(ttl)}
}

// Acquired returns the names of every successful Acquire, in order
func (m *MockDistributedLock) Acquired() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acquired...)
}

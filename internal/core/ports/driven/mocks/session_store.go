package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven"
)

var _ driven.SessionStore = (*MockSessionStore)(nil)

// MockSessionStore is a mock implementation of SessionStore for testing
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	byUser   map[string][]string
}

// NewMockSessionStore creates a new MockSessionStore
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		sessions: make(map[string]*domain.Session),
		byUser:   make(map[string][]string),
	}
}

func (m *MockSessionStore) Save(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	m.byUser[session.UserID] = append(m.byUser[session.UserID], session.ID)
	return nil
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionStore) DeleteByUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.byUser[userID] {
		delete(m.sessions, id)
	}
	delete(m.byUser, userID)
	return nil
}

// Helper methods for testing

func (m *MockSessionStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*domain.Session)
	m.byUser = make(map[string][]string)
}

func (m *MockSessionStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

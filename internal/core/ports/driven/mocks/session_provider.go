package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven"
)

var _ driven.SessionProvider = (*MockSessionProvider)(nil)

// MockSessionProvider returns a fixed identity and counts calls
type MockSessionProvider struct {
	mu      sync.Mutex
	session *domain.AuthContext
	calls   int
}

// NewMockSessionProvider creates a provider resolving to session (nil = unauthenticated)
func NewMockSessionProvider(session *domain.AuthContext) *MockSessionProvider {
	return &MockSessionProvider{session: session}
}

func (m *MockSessionProvider) ResolveSession(ctx context.Context) *domain.AuthContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.session
}

// SetSession replaces the identity returned by ResolveSession
func (m *MockSessionProvider) SetSession(session *domain.AuthContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
}

// Calls returns the number of ResolveSession calls
func (m *MockSessionProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

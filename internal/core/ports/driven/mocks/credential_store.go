package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven"
)

var _ driven.CredentialStore = (*MockCredentialStore)(nil)

// CredentialWrite records one SetCredential call
type CredentialWrite struct {
	UserID       string
	PasswordHash string
}

// MockCredentialStore is a map-backed CredentialStore that records reads and
// writes and can be told to fail.
type MockCredentialStore struct {
	mu     sync.Mutex
	hashes map[string]string
	reads  int
	writes []CredentialWrite

	// GetErr, when set, is returned by GetCredential
	GetErr error
	// SetErr, when set, is returned by SetCredential (the write is still recorded)
	SetErr error
}

// NewMockCredentialStore creates a new MockCredentialStore
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{
		hashes: make(map[string]string),
	}
}

// Put seeds a stored hash without recording a write
func (m *MockCredentialStore) Put(userID, passwordHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[userID] = passwordHash
}

func (m *MockCredentialStore) GetCredential(ctx context.Context, userID string) (*domain.StoredCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	hash, ok := m.hashes[userID]
	if !ok {
		return nil, nil
	}
	return &domain.StoredCredential{UserID: userID, PasswordHash: hash}, nil
}

func (m *MockCredentialStore) SetCredential(ctx context.Context, userID string, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, CredentialWrite{UserID: userID, PasswordHash: passwordHash})
	if m.SetErr != nil {
		return m.SetErr
	}
	m.hashes[userID] = passwordHash
	return nil
}

// Helper methods for testing

// Hash returns the currently stored hash for a user
func (m *MockCredentialStore) Hash(userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, ok := m.hashes[userID]
	return hash, ok
}

// Reads returns the number of GetCredential calls
func (m *MockCredentialStore) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Writes returns a copy of every SetCredential call
func (m *MockCredentialStore) Writes() []CredentialWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CredentialWrite(nil), m.writes...)
}

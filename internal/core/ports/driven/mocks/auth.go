package mocks

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven"
)

// Ensure MockAuthAdapter implements AuthAdapter
var _ driven.AuthAdapter = (*MockAuthAdapter)(nil)

// mockHashPrefix marks values produced by MockAuthAdapter.HashPassword
const mockHashPrefix = "mockhash$"

// MockAuthAdapter is a mock implementation of AuthAdapter for testing.
// It prefixes passwords instead of hashing and uses base64-encoded JSON for tokens.
// NOT secure - only for testing.
type MockAuthAdapter struct {
	// HashErr, when set, is returned by HashPassword
	HashErr error
}

// NewMockAuthAdapter creates a new MockAuthAdapter
func NewMockAuthAdapter() *MockAuthAdapter {
	return &MockAuthAdapter{}
}

// MockHash returns the value HashPassword produces for password
func MockHash(password string) string {
	return mockHashPrefix + password
}

// HashPassword prefixes the password (for testing only)
func (m *MockAuthAdapter) HashPassword(password string) (string, error) {
	if m.HashErr != nil {
		return "", m.HashErr
	}
	return MockHash(password), nil
}

// VerifyPassword checks the password against a MockHash value (for testing only)
func (m *MockAuthAdapter) VerifyPassword(password, hash string) bool {
	stored, ok := strings.CutPrefix(hash, mockHashPrefix)
	return ok && stored == password
}

// GenerateToken creates a base64-encoded JSON token from claims
func (m *MockAuthAdapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	data, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ParseToken decodes a base64-encoded JSON token and returns claims
func (m *MockAuthAdapter) ParseToken(token string) (*domain.TokenClaims, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	var claims domain.TokenClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, domain.ErrTokenInvalid
	}

	return &claims, nil
}

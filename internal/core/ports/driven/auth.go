package driven

import "github.com/custodia-labs/restormel-core/internal/core/domain"

// PasswordHasher derives and verifies salted password hashes
type PasswordHasher interface {
	// HashPassword hashes with a fresh random salt
	HashPassword(password string) (string, error)

	// VerifyPassword reports whether password matches hash
	VerifyPassword(password, hash string) bool
}

// AuthAdapter handles authentication cryptographic operations.
// This does NOT handle storage - use SessionStore for session persistence.
type AuthAdapter interface {
	PasswordHasher

	// Token operations
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}

package driven

import (
	"context"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
)

// CredentialStore looks up and persists password hashes keyed by user ID.
// Implementations must serialize concurrent writes for the same user.
type CredentialStore interface {
	// GetCredential returns the stored credential, or (nil, nil) if the user has none
	GetCredential(ctx context.Context, userID string) (*domain.StoredCredential, error)

	// SetCredential replaces the password hash for a user
	SetCredential(ctx context.Context, userID string, passwordHash string) error
}

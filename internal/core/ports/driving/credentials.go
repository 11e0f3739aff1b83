package driving

import (
	"context"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
)

// CredentialService updates the caller's own password
type CredentialService interface {
	// ChangePassword verifies the current password and stores a new one.
	// Every failure is reported in the result; it never returns a Go error.
	ChangePassword(ctx context.Context, req domain.ChangePasswordRequest) domain.ChangePasswordResult
}

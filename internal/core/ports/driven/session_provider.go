package driven

import (
	"context"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
)

// SessionProvider resolves the caller's identity for the current request.
// It returns nil when the caller is unauthenticated.
type SessionProvider interface {
	ResolveSession(ctx context.Context) *domain.AuthContext
}

// SessionProviderFunc adapts a function to SessionProvider
type SessionProviderFunc func(ctx context.Context) *domain.AuthContext

// ResolveSession calls f(ctx)
func (f SessionProviderFunc) ResolveSession(ctx context.Context) *domain.AuthContext {
	return f(ctx)
}

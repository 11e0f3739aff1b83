package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driving"
)

// DefaultTokenTTL is the session lifetime used when none is configured
const DefaultTokenTTL = 24 * time.Hour

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService implements the AuthService interface
type authService struct {
	userStore    driven.UserStore
	sessionStore driven.SessionStore
	authAdapter  driven.AuthAdapter
	tokenTTL     time.Duration
}

// NewAuthService creates a new AuthService. A non-positive tokenTTL uses DefaultTokenTTL.
func NewAuthService(
	userStore driven.UserStore,
	sessionStore driven.SessionStore,
	authAdapter driven.AuthAdapter,
	tokenTTL time.Duration,
) driving.AuthService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &authService{
		userStore:    userStore,
		sessionStore: sessionStore,
		authAdapter:  authAdapter,
		tokenTTL:     tokenTTL,
	}
}

// Authenticate validates credentials and creates a session
func (s *authService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, domain.ErrInvalidInput
	}

	user, err := s.userStore.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.Active {
		return nil, domain.ErrUnauthorized
	}

	if !s.authAdapter.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	sessionID := generateID()
	claims := &domain.TokenClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		TeamID:    user.TeamID,
		SessionID: sessionID,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}

	token, err := s.authAdapter.GenerateToken(claims)
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	}

	if err := s.sessionStore.Save(ctx, session); err != nil {
		return nil, err
	}

	// Last-login bookkeeping must not fail the login
	_ = s.userStore.UpdateLastLogin(ctx, user.ID)

	return &domain.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.ToSummary(),
	}, nil
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	if time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	// Verify session exists (logout revokes tokens before they expire)
	session, err := s.sessionStore.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}

	if session.IsExpired() {
		return nil, domain.ErrTokenExpired
	}

	return &domain.AuthContext{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		TeamID:    claims.TeamID,
		SessionID: claims.SessionID,
	}, nil
}

// Logout invalidates a session
func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		return nil // Already invalid, nothing to do
	}

	return s.sessionStore.Delete(ctx, claims.SessionID)
}

// LogoutAll invalidates all sessions for a user
func (s *authService) LogoutAll(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrInvalidInput
	}
	return s.sessionStore.DeleteByUser(ctx, userID)
}

// Helper functions

func generateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

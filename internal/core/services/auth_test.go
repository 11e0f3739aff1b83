package services

import (
	"context"
	"testing"
	"time"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven/mocks"
)

func newTestAuthService() (*mocks.MockUserStore, *mocks.MockSessionStore, *mocks.MockAuthAdapter, *authService) {
	userStore := mocks.NewMockUserStore()
	sessionStore := mocks.NewMockSessionStore()
	authAdapter := mocks.NewMockAuthAdapter()
	svc := NewAuthService(userStore, sessionStore, authAdapter, time.Hour).(*authService)
	return userStore, sessionStore, authAdapter, svc
}

func seedUser(t *testing.T, store *mocks.MockUserStore, id, email, password string, active bool) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: mocks.MockHash(password),
		Name:         "Test User",
		Role:         domain.RoleMember,
		TeamID:       "team-123",
		Active:       active,
		CreatedAt:    time.Now(),
	}
	if err := store.Save(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func TestNewAuthService_DefaultTTL(t *testing.T) {
	svc := NewAuthService(mocks.NewMockUserStore(), mocks.NewMockSessionStore(), mocks.NewMockAuthAdapter(), 0).(*authService)
	if svc.tokenTTL != DefaultTokenTTL {
		t.Errorf("expected default TTL %v, got %v", DefaultTokenTTL, svc.tokenTTL)
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	userStore, _, _, svc := newTestAuthService()
	seedUser(t, userStore, "user-123", "test@example.com", "password123", true)

	tests := []struct {
		name    string
		req     domain.LoginRequest
		wantErr error
	}{
		{
			name: "valid credentials",
			req: domain.LoginRequest{
				Email:    "test@example.com",
				Password: "password123",
			},
			wantErr: nil,
		},
		{
			name: "email is normalised",
			req: domain.LoginRequest{
				Email:    "  Test@Example.com ",
				Password: "password123",
			},
			wantErr: nil,
		},
		{
			name: "empty email",
			req: domain.LoginRequest{
				Email:    "",
				Password: "password123",
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "empty password",
			req: domain.LoginRequest{
				Email:    "test@example.com",
				Password: "",
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "wrong password",
			req: domain.LoginRequest{
				Email:    "test@example.com",
				Password: "wrongpassword",
			},
			wantErr: domain.ErrInvalidCredentials,
		},
		{
			name: "unknown user",
			req: domain.LoginRequest{
				Email:    "unknown@example.com",
				Password: "password123",
			},
			wantErr: domain.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Authenticate(context.Background(), tt.req)

			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp == nil {
				t.Fatal("expected response to be returned")
			}
			if resp.Token == "" {
				t.Error("expected token to be generated")
			}
			if resp.User.Email != "test@example.com" {
				t.Errorf("expected user email test@example.com, got %s", resp.User.Email)
			}
			if !resp.ExpiresAt.After(time.Now()) {
				t.Error("expected expiry in the future")
			}
		})
	}
}

func TestAuthService_Authenticate_InactiveUser(t *testing.T) {
	userStore, _, _, svc := newTestAuthService()
	seedUser(t, userStore, "user-123", "inactive@example.com", "password123", false)

	_, err := svc.Authenticate(context.Background(), domain.LoginRequest{
		Email:    "inactive@example.com",
		Password: "password123",
	})

	if err != domain.ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized for inactive user, got %v", err)
	}
}

func TestAuthService_Authenticate_RecordsSessionAndLastLogin(t *testing.T) {
	userStore, sessionStore, _, svc := newTestAuthService()
	user := seedUser(t, userStore, "user-123", "test@example.com", "password123", true)

	_, err := svc.Authenticate(context.Background(), domain.LoginRequest{
		Email:     "test@example.com",
		Password:  "password123",
		UserAgent: "go-test",
		IPAddress: "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sessionStore.Count() != 1 {
		t.Errorf("expected 1 session, got %d", sessionStore.Count())
	}
	if user.LastLoginAt == nil {
		t.Error("expected last login to be recorded")
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	userStore, sessionStore, authAdapter, svc := newTestAuthService()
	seedUser(t, userStore, "user-123", "test@example.com", "password123", true)

	resp, err := svc.Authenticate(context.Background(), domain.LoginRequest{
		Email:    "test@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}

	authCtx, err := svc.ValidateToken(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if authCtx.UserID != "user-123" {
		t.Errorf("expected user ID user-123, got %s", authCtx.UserID)
	}
	if authCtx.TeamID != "team-123" {
		t.Errorf("expected team ID team-123, got %s", authCtx.TeamID)
	}
	if authCtx.SessionID == "" {
		t.Error("expected session ID to be set")
	}

	t.Run("empty token", func(t *testing.T) {
		if _, err := svc.ValidateToken(context.Background(), ""); err != domain.ErrTokenInvalid {
			t.Errorf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("malformed token", func(t *testing.T) {
		if _, err := svc.ValidateToken(context.Background(), "%%%not-a-token"); err != domain.ErrTokenInvalid {
			t.Errorf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("expired claims", func(t *testing.T) {
		token, _ := authAdapter.GenerateToken(&domain.TokenClaims{
			UserID:    "user-123",
			SessionID: authCtx.SessionID,
			ExpiresAt: time.Now().Add(-time.Minute).Unix(),
		})
		if _, err := svc.ValidateToken(context.Background(), token); err != domain.ErrTokenExpired {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("revoked session", func(t *testing.T) {
		_ = sessionStore.Delete(context.Background(), authCtx.SessionID)
		if _, err := svc.ValidateToken(context.Background(), resp.Token); err != domain.ErrSessionNotFound {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestAuthService_ValidateToken_ExpiredSession(t *testing.T) {
	_, sessionStore, authAdapter, svc := newTestAuthService()

	_ = sessionStore.Save(context.Background(), &domain.Session{
		ID:        "session-1",
		UserID:    "user-123",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	token, _ := authAdapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-123",
		SessionID: "session-1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})

	if _, err := svc.ValidateToken(context.Background(), token); err != domain.ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	userStore, sessionStore, _, svc := newTestAuthService()
	seedUser(t, userStore, "user-123", "test@example.com", "password123", true)

	resp, err := svc.Authenticate(context.Background(), domain.LoginRequest{
		Email:    "test@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}

	if err := svc.Logout(context.Background(), resp.Token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sessionStore.Count() != 0 {
		t.Errorf("expected session to be deleted, %d remain", sessionStore.Count())
	}

	// Logging out an empty or garbage token is a no-op
	if err := svc.Logout(context.Background(), ""); err != nil {
		t.Errorf("expected nil error for empty token, got %v", err)
	}
	if err := svc.Logout(context.Background(), "%%%"); err != nil {
		t.Errorf("expected nil error for invalid token, got %v", err)
	}
}

func TestAuthService_LogoutAll(t *testing.T) {
	userStore, sessionStore, _, svc := newTestAuthService()
	seedUser(t, userStore, "user-123", "test@example.com", "password123", true)

	for i := 0; i < 3; i++ {
		if _, err := svc.Authenticate(context.Background(), domain.LoginRequest{
			Email:    "test@example.com",
			Password: "password123",
		}); err != nil {
			t.Fatalf("failed to authenticate: %v", err)
		}
	}
	if sessionStore.Count() != 3 {
		t.Fatalf("expected 3 sessions, got %d", sessionStore.Count())
	}

	if err := svc.LogoutAll(context.Background(), "user-123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sessionStore.Count() != 0 {
		t.Errorf("expected all sessions to be deleted, %d remain", sessionStore.Count())
	}

	if err := svc.LogoutAll(context.Background(), ""); err != domain.ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

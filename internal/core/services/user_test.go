package services

import (
	"context"
	"testing"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driving"
)

func newTestUserService() (*mocks.MockUserStore, *userService) {
	userStore := mocks.NewMockUserStore()
	svc := NewUserService(userStore, mocks.NewMockAuthAdapter(), "team-123").(*userService)
	return userStore, svc
}

func TestUserService_Create(t *testing.T) {
	_, svc := newTestUserService()

	tests := []struct {
		name    string
		req     driving.CreateUserRequest
		wantErr error
	}{
		{
			name: "valid member",
			req: driving.CreateUserRequest{
				Email:    "member@example.com",
				Password: "password123",
				Name:     "Member",
				Role:     domain.RoleMember,
			},
		},
		{
			name: "valid admin",
			req: driving.CreateUserRequest{
				Email:    "admin@example.com",
				Password: "password123",
				Name:     "Admin",
				Role:     domain.RoleAdmin,
			},
		},
		{
			name: "missing email",
			req: driving.CreateUserRequest{
				Password: "password123",
				Name:     "No Email",
				Role:     domain.RoleMember,
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "short password",
			req: driving.CreateUserRequest{
				Email:    "short@example.com",
				Password: "short",
				Name:     "Short",
				Role:     domain.RoleMember,
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "unknown role",
			req: driving.CreateUserRequest{
				Email:    "role@example.com",
				Password: "password123",
				Name:     "Role",
				Role:     domain.Role("owner"),
			},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Create(context.Background(), tt.req)

			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if user.ID == "" {
				t.Error("expected ID to be generated")
			}
			if user.TeamID != "team-123" {
				t.Errorf("expected team-123, got %s", user.TeamID)
			}
			if !user.Active {
				t.Error("expected new user to be active")
			}
			if user.PasswordHash == tt.req.Password {
				t.Error("expected password to be hashed")
			}
			if user.PasswordHash != mocks.MockHash(tt.req.Password) {
				t.Errorf("unexpected password hash %q", user.PasswordHash)
			}
		})
	}
}

func TestUserService_Create_DuplicateEmail(t *testing.T) {
	_, svc := newTestUserService()

	req := driving.CreateUserRequest{
		Email:    "dup@example.com",
		Password: "password123",
		Name:     "Dup",
		Role:     domain.RoleMember,
	}
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req.Email = "DUP@example.com"
	if _, err := svc.Create(context.Background(), req); err != domain.ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUserService_Create_HashError(t *testing.T) {
	userStore := mocks.NewMockUserStore()
	hasher := mocks.NewMockAuthAdapter()
	hasher.HashErr = domain.ErrUnsupportedHash
	svc := NewUserService(userStore, hasher, "team-123")

	_, err := svc.Create(context.Background(), driving.CreateUserRequest{
		Email:    "a@example.com",
		Password: "password123",
		Name:     "A",
		Role:     domain.RoleMember,
	})
	if err != domain.ErrUnsupportedHash {
		t.Errorf("expected hash error to propagate, got %v", err)
	}
	if userStore.Count() != 0 {
		t.Error("expected no user to be saved")
	}
}

func TestUserService_Setup(t *testing.T) {
	_, svc := newTestUserService()

	resp, err := svc.Setup(context.Background(), driving.SetupRequest{
		Email:    "admin@example.com",
		Password: "password123",
		Name:     "Admin",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.User.Role != domain.RoleAdmin {
		t.Errorf("expected admin role, got %s", resp.User.Role)
	}

	// Second setup is rejected once a user exists
	_, err = svc.Setup(context.Background(), driving.SetupRequest{
		Email:    "other@example.com",
		Password: "password123",
		Name:     "Other",
	})
	if err != domain.ErrForbidden {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestUserService_Setup_InvalidInput(t *testing.T) {
	_, svc := newTestUserService()

	_, err := svc.Setup(context.Background(), driving.SetupRequest{Email: "admin@example.com"})
	if err != domain.ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUserService_Get(t *testing.T) {
	userStore, svc := newTestUserService()
	seedUser(t, userStore, "user-123", "test@example.com", "password123", true)

	user, err := svc.Get(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "test@example.com" {
		t.Errorf("expected test@example.com, got %s", user.Email)
	}

	if _, err := svc.Get(context.Background(), "missing"); err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserService_Get_WrongTeam(t *testing.T) {
	userStore, svc := newTestUserService()
	user := seedUser(t, userStore, "user-456", "other@example.com", "password123", true)
	user.TeamID = "other-team"

	if _, err := svc.Get(context.Background(), "user-456"); err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound for user in another team, got %v", err)
	}
}

func TestUserService_List(t *testing.T) {
	userStore, svc := newTestUserService()
	seedUser(t, userStore, "user-1", "one@example.com", "password123", true)
	seedUser(t, userStore, "user-2", "two@example.com", "password123", true)
	other := seedUser(t, userStore, "user-3", "three@example.com", "password123", true)
	other.TeamID = "other-team"

	users, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}
}

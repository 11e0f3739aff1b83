package services

import (
	"context"
	"strings"
	"time"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driving"
)

// Ensure userService implements UserService
var _ driving.UserService = (*userService)(nil)

// userService implements the UserService interface
type userService struct {
	userStore driven.UserStore
	hasher    driven.PasswordHasher
	teamID    string // Team context for this service instance
}

// NewUserService creates a new UserService
func NewUserService(
	userStore driven.UserStore,
	hasher driven.PasswordHasher,
	teamID string,
) driving.UserService {
	return &userService{
		userStore: userStore,
		hasher:    hasher,
		teamID:    teamID,
	}
}

// Setup creates the initial admin user (only works if no users exist)
func (s *userService) Setup(ctx context.Context, req driving.SetupRequest) (*driving.SetupResponse, error) {
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return nil, domain.ErrInvalidInput
	}

	users, err := s.userStore.List(ctx, s.teamID)
	if err != nil {
		return nil, err
	}
	if len(users) > 0 {
		return nil, domain.ErrForbidden
	}

	user, err := s.Create(ctx, driving.CreateUserRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return nil, err
	}

	return &driving.SetupResponse{
		User:    user.ToSummary(),
		Message: "Setup complete. You can now log in.",
	}, nil
}

// Create creates a new user (admin only)
func (s *userService) Create(ctx context.Context, req driving.CreateUserRequest) (*domain.User, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	existing, _ := s.userStore.GetByEmail(ctx, email)
	if existing != nil {
		return nil, domain.ErrAlreadyExists
	}

	passwordHash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           generateID(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
		TeamID:       s.teamID,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userStore.Save(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Get retrieves a user by ID
func (s *userService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Ensure user belongs to this team
	if user.TeamID != s.teamID {
		return nil, domain.ErrNotFound
	}

	return user, nil
}

// List retrieves all users in the team
func (s *userService) List(ctx context.Context) ([]*domain.User, error) {
	return s.userStore.List(ctx, s.teamID)
}

// validateCreateRequest validates the create user request
func (s *userService) validateCreateRequest(req driving.CreateUserRequest) error {
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return domain.ErrInvalidInput
	}
	if len([]rune(req.Password)) < domain.MinPasswordLength {
		return domain.ErrInvalidInput
	}
	if !req.Role.Valid() {
		return domain.ErrInvalidInput
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driving"
)

// DefaultCredentialLockTTL bounds how long a per-user change lock is held
const DefaultCredentialLockTTL = 10 * time.Second

// errChangeInProgress is logged when another change for the same user holds the lock
var errChangeInProgress = errors.New("another password change is in progress")

// Ensure credentialService implements CredentialService
var _ driving.CredentialService = (*credentialService)(nil)

// credentialService implements the change-password flow:
// authorize, validate, verify current password, hash, persist, report.
type credentialService struct {
	sessions         driven.SessionProvider
	store            driven.CredentialStore
	hasher           driven.PasswordHasher
	lock             driven.DistributedLock
	lockTTL          time.Duration
	logger           *slog.Logger
	newCorrelationID func() string
}

// CredentialServiceConfig holds the collaborators of the credential service.
type CredentialServiceConfig struct {
	Sessions driven.SessionProvider
	Store    driven.CredentialStore
	Hasher   driven.PasswordHasher
	Logger   *slog.Logger

	// Lock, when set, serializes changes per user across instances
	Lock    driven.DistributedLock
	LockTTL time.Duration // default: DefaultCredentialLockTTL

	// CorrelationID generates the ID returned with persistence failures (default: UUIDv7)
	CorrelationID func() string
}

// NewCredentialService creates a new CredentialService
func NewCredentialService(cfg CredentialServiceConfig) driving.CredentialService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	correlationID := cfg.CorrelationID
	if correlationID == nil {
		correlationID = newCorrelationID
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultCredentialLockTTL
	}

	return &credentialService{
		sessions:         cfg.Sessions,
		store:            cfg.Store,
		hasher:           cfg.Hasher,
		lock:             cfg.Lock,
		lockTTL:          lockTTL,
		logger:           logger.With("component", "credentials"),
		newCorrelationID: correlationID,
	}
}

// ChangePassword changes the password for the authenticated caller.
// Steps run strictly in order and each failure ends the call.
func (s *credentialService) ChangePassword(ctx context.Context, req domain.ChangePasswordRequest) domain.ChangePasswordResult {
	session := s.sessions.ResolveSession(ctx)
	if session == nil || session.UserID == "" {
		return domain.Failed(domain.ResultUnauthorized, domain.MsgUnauthorized)
	}

	if verr := ValidateChangePassword(req); verr != nil {
		return domain.Failed(domain.ResultInvalid, verr.Message)
	}

	logger := s.logger.With("user_id", session.UserID)

	if s.lock != nil {
		name := "credentials:" + session.UserID
		token, acquired, err := s.lock.Acquire(ctx, name, s.lockTTL)
		if err != nil {
			return s.fail(logger, "acquire lock", err)
		}
		if !acquired {
			return s.fail(logger, "acquire lock", errChangeInProgress)
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), name, token); err != nil {
				logger.Warn("failed to release credential lock", "error", err)
			}
		}()
	}

	cred, err := s.store.GetCredential(ctx, session.UserID)
	if err != nil {
		return s.fail(logger, "load credential", err)
	}

	// Missing credential and wrong password are indistinguishable to the caller
	if cred == nil || !s.hasher.VerifyPassword(req.CurrentPassword, cred.PasswordHash) {
		logger.Info("password change rejected", "reason", "current password mismatch")
		return domain.Failed(domain.ResultCredentialMismatch, domain.MsgCurrentPasswordWrong)
	}

	newHash, err := s.hasher.HashPassword(req.NewPassword)
	if err != nil {
		return s.fail(logger, "hash password", err)
	}

	if err := s.store.SetCredential(ctx, session.UserID, newHash); err != nil {
		return s.fail(logger, "store credential", err)
	}

	logger.Info("password changed")
	return domain.Succeeded(domain.MsgPasswordUpdated)
}

// fail logs the full error server-side and returns a generic result that
// carries only the correlation ID.
func (s *credentialService) fail(logger *slog.Logger, stage string, err error) domain.ChangePasswordResult {
	id := s.newCorrelationID()
	logger.Error("change password failed",
		"stage", stage,
		"correlation_id", id,
		"error", err,
	)
	return domain.Failed(domain.ResultFailed, domain.MsgUnableToUpdatePrefix+id)
}

// newCorrelationID returns a time-ordered unique ID, falling back to a random one
func newCorrelationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore implements driven.CredentialStore on the users table
type CredentialStore struct {
	db *DB
}

// NewCredentialStore creates a new CredentialStore
func NewCredentialStore(db *DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// GetCredential returns the password hash for an active user, or nil if there is none
func (s *CredentialStore) GetCredential(ctx context.Context, userID string) (*domain.StoredCredential, error) {
	query := `SELECT password_hash FROM users WHERE id = $1 AND active`

	cred := domain.StoredCredential{UserID: userID}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&cred.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if cred.PasswordHash == "" {
		return nil, nil
	}

	return &cred, nil
}

// SetCredential replaces the password hash for a user. The user row is
// locked for the duration so concurrent writes for one user serialize.
func (s *CredentialStore) SetCredential(ctx context.Context, userID string, passwordHash string) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
			passwordHash, time.Now(), userID,
		)
		if err != nil {
			return fmt.Errorf("set credential: %w", err)
		}
		return nil
	})
}

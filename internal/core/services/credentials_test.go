package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
	"github.com/custodia-labs/restormel-core/internal/core/ports/driven/mocks"
)

const testUserID = "user-123"

type credentialFixture struct {
	sessions *mocks.MockSessionProvider
	store    *mocks.MockCredentialStore
	hasher   *mocks.MockAuthAdapter
	logs     *bytes.Buffer
	svc      *credentialService
}

func newCredentialFixture(t *testing.T, session *domain.AuthContext) *credentialFixture {
	t.Helper()
	f := &credentialFixture{
		sessions: mocks.NewMockSessionProvider(session),
		store:    mocks.NewMockCredentialStore(),
		hasher:   mocks.NewMockAuthAdapter(),
		logs:     &bytes.Buffer{},
	}
	f.svc = NewCredentialService(CredentialServiceConfig{
		Sessions:      f.sessions,
		Store:         f.store,
		Hasher:        f.hasher,
		Logger:        slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		CorrelationID: func() string { return "corr-1" },
	}).(*credentialService)
	return f
}

func authenticated() *domain.AuthContext {
	return &domain.AuthContext{UserID: testUserID, Role: domain.RoleMember, TeamID: "team-123", SessionID: "s-1"}
}

func validChange() domain.ChangePasswordRequest {
	return domain.ChangePasswordRequest{
		CurrentPassword: "oldpass1",
		NewPassword:     "newpass123",
		ConfirmPassword: "newpass123",
	}
}

func errorMessage(t *testing.T, r domain.ChangePasswordResult) string {
	t.Helper()
	msg, ok := r.ErrorMessage()
	require.True(t, ok, "expected an error result, got kind %s", r.Kind())
	return msg
}

func TestCredentialService_ChangePassword_Success(t *testing.T) {
	f := newCredentialFixture(t, authenticated())
	f.store.Put(testUserID, mocks.MockHash("oldpass1"))

	result := f.svc.ChangePassword(context.Background(), validChange())

	require.True(t, result.IsSuccess())
	msg, ok := result.SuccessMessage()
	require.True(t, ok)
	assert.Equal(t, domain.MsgPasswordUpdated, msg)
	_, hasErr := result.ErrorMessage()
	assert.False(t, hasErr)

	writes := f.store.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, testUserID, writes[0].UserID)
	assert.NotEqual(t, "newpass123", writes[0].PasswordHash)
	assert.Greater(t, len(writes[0].PasswordHash), 8)
	assert.True(t, f.hasher.VerifyPassword("newpass123", writes[0].PasswordHash))
	assert.False(t, f.hasher.VerifyPassword("oldpass1", writes[0].PasswordHash))
}

func TestCredentialService_ChangePassword_Unauthorized(t *testing.T) {
	tests := []struct {
		name    string
		session *domain.AuthContext
		req     domain.ChangePasswordRequest
	}{
		{name: "no session", session: nil, req: validChange()},
		{name: "session without user", session: &domain.AuthContext{SessionID: "s-1"}, req: validChange()},
		{name: "no session and invalid input", session: nil, req: domain.ChangePasswordRequest{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCredentialFixture(t, tt.session)

			result := f.svc.ChangePassword(context.Background(), tt.req)

			assert.Equal(t, domain.ResultUnauthorized, result.Kind())
			assert.Equal(t, domain.MsgUnauthorized, errorMessage(t, result))
			assert.Zero(t, f.store.Reads())
			assert.Empty(t, f.store.Writes())
		})
	}
}

func TestCredentialService_ChangePassword_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  domain.ChangePasswordRequest
		want string
	}{
		{
			name: "missing current password",
			req:  domain.ChangePasswordRequest{NewPassword: "newpass123", ConfirmPassword: "newpass123"},
			want: domain.MsgCurrentRequired,
		},
		{
			name: "new password too short",
			req:  domain.ChangePasswordRequest{CurrentPassword: "x", NewPassword: "short", ConfirmPassword: "short"},
			want: domain.MsgNewPasswordTooShort,
		},
		{
			name: "missing confirmation",
			req:  domain.ChangePasswordRequest{CurrentPassword: "x", NewPassword: "newpass123"},
			want: domain.MsgConfirmRequired,
		},
		{
			name: "confirmation mismatch",
			req:  domain.ChangePasswordRequest{CurrentPassword: "x", NewPassword: "newpass123", ConfirmPassword: "newpass124"},
			want: domain.MsgConfirmationMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCredentialFixture(t, authenticated())
			f.store.Put(testUserID, mocks.MockHash("x"))

			result := f.svc.ChangePassword(context.Background(), tt.req)

			assert.Equal(t, domain.ResultInvalid, result.Kind())
			assert.Equal(t, tt.want, errorMessage(t, result))
			assert.Zero(t, f.store.Reads())
			assert.Empty(t, f.store.Writes())
		})
	}
}

func TestCredentialService_ChangePassword_CurrentPasswordWrong(t *testing.T) {
	f := newCredentialFixture(t, authenticated())
	f.store.Put(testUserID, mocks.MockHash("oldpass1"))

	req := validChange()
	req.CurrentPassword = "not-the-password"
	result := f.svc.ChangePassword(context.Background(), req)

	assert.Equal(t, domain.ResultCredentialMismatch, result.Kind())
	assert.Equal(t, domain.MsgCurrentPasswordWrong, errorMessage(t, result))
	assert.Empty(t, f.store.Writes())
	hash, _ := f.store.Hash(testUserID)
	assert.Equal(t, mocks.MockHash("oldpass1"), hash)
}

func TestCredentialService_ChangePassword_NoStoredCredential(t *testing.T) {
	f := newCredentialFixture(t, authenticated())

	result := f.svc.ChangePassword(context.Background(), validChange())

	assert.Equal(t, domain.ResultCredentialMismatch, result.Kind())
	assert.Equal(t, domain.MsgCurrentPasswordWrong, errorMessage(t, result))
	assert.Empty(t, f.store.Writes())
}

func TestCredentialService_ChangePassword_InfrastructureFailures(t *testing.T) {
	leak := errors.New("Connection refused: postgres://localhost:5432")

	tests := []struct {
		name       string
		setup      func(f *credentialFixture)
		wantWrites int
		wantStage  string
	}{
		{
			name:       "store write fails",
			setup:      func(f *credentialFixture) { f.store.SetErr = leak },
			wantWrites: 1,
			wantStage:  "store credential",
		},
		{
			name:       "store read fails",
			setup:      func(f *credentialFixture) { f.store.GetErr = leak },
			wantWrites: 0,
			wantStage:  "load credential",
		},
		{
			name:       "hashing fails",
			setup:      func(f *credentialFixture) { f.hasher.HashErr = leak },
			wantWrites: 0,
			wantStage:  "hash password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCredentialFixture(t, authenticated())
			f.store.Put(testUserID, mocks.MockHash("oldpass1"))
			tt.setup(f)

			result := f.svc.ChangePassword(context.Background(), validChange())

			assert.Equal(t, domain.ResultFailed, result.Kind())
			msg := errorMessage(t, result)
			assert.Equal(t, domain.MsgUnableToUpdatePrefix+"corr-1", msg)
			assert.NotContains(t, msg, "postgres")
			assert.NotContains(t, msg, "Connection refused")
			assert.Len(t, f.store.Writes(), tt.wantWrites)

			// The detail stays server-side, tagged with the same ID
			logs := f.logs.String()
			assert.Contains(t, logs, "correlation_id=corr-1")
			assert.Contains(t, logs, "Connection refused")
			assert.Contains(t, logs, tt.wantStage)
		})
	}
}

func TestCredentialService_ChangePassword_DoesNotLogSecrets(t *testing.T) {
	f := newCredentialFixture(t, authenticated())
	f.store.Put(testUserID, mocks.MockHash("oldpass1"))
	f.store.SetErr = errors.New("write failed")

	f.svc.ChangePassword(context.Background(), validChange())
	req := validChange()
	req.CurrentPassword = "wrong-current"
	f.svc.ChangePassword(context.Background(), req)

	logs := f.logs.String()
	for _, secret := range []string{"oldpass1", "newpass123", "wrong-current"} {
		assert.NotContains(t, logs, secret)
	}
}

func TestCredentialService_ChangePassword_SequentialRequests(t *testing.T) {
	f := newCredentialFixture(t, authenticated())
	f.store.Put(testUserID, mocks.MockHash("oldpass1"))

	first := f.svc.ChangePassword(context.Background(), validChange())
	require.True(t, first.IsSuccess())

	// Same request again: the old current password no longer verifies
	second := f.svc.ChangePassword(context.Background(), validChange())
	assert.Equal(t, domain.ResultCredentialMismatch, second.Kind())
	assert.Len(t, f.store.Writes(), 1)

	third := f.svc.ChangePassword(context.Background(), domain.ChangePasswordRequest{
		CurrentPassword: "newpass123",
		NewPassword:     "another-pass",
		ConfirmPassword: "another-pass",
	})
	assert.True(t, third.IsSuccess())
	hash, _ := f.store.Hash(testUserID)
	assert.True(t, f.hasher.VerifyPassword("another-pass", hash))
}

func TestCredentialService_ChangePassword_Concurrent(t *testing.T) {
	f := newCredentialFixture(t, authenticated())
	f.store.Put(testUserID, mocks.MockHash("oldpass1"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.ChangePassword(context.Background(), validChange())
		}()
	}
	wg.Wait()

	hash, ok := f.store.Hash(testUserID)
	require.True(t, ok)
	assert.True(t, f.hasher.VerifyPassword("newpass123", hash))
	assert.Equal(t, 10, f.sessions.Calls())
}

func TestCredentialService_DefaultCorrelationID(t *testing.T) {
	svc := NewCredentialService(CredentialServiceConfig{
		Sessions: mocks.NewMockSessionProvider(authenticated()),
		Store:    &failingStore{},
		Hasher:   mocks.NewMockAuthAdapter(),
		Logger:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})

	a := svc.ChangePassword(context.Background(), validChange())
	b := svc.ChangePassword(context.Background(), validChange())

	msgA, _ := a.ErrorMessage()
	msgB, _ := b.ErrorMessage()
	idA := strings.TrimPrefix(msgA, domain.MsgUnableToUpdatePrefix)
	idB := strings.TrimPrefix(msgB, domain.MsgUnableToUpdatePrefix)
	assert.Len(t, idA, 36)
	assert.NotEqual(t, idA, idB)
}

type failingStore struct{}

func (failingStore) GetCredential(context.Context, string) (*domain.StoredCredential, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (failingStore) SetCredential(context.Context, string, string) error {
	return errors.New("dial tcp: connection refused")
}

func TestCredentialService_ChangePassword_Lock(t *testing.T) {
	newLocked := func(t *testing.T) (*credentialFixture, *mocks.MockDistributedLock) {
		f := newCredentialFixture(t, authenticated())
		f.store.Put(testUserID, mocks.MockHash("oldpass1"))
		lock := mocks.NewMockDistributedLock()
		f.svc.lock = lock
		return f, lock
	}

	t.Run("held for the change and released after", func(t *testing.T) {
		f, lock := newLocked(t)

		result := f.svc.ChangePassword(context.Background(), validChange())

		assert.True(t, result.IsSuccess())
		assert.Equal(t, []string{"credentials:" + testUserID}, lock.Acquired())
		assert.False(t, lock.IsHeld("credentials:"+testUserID))
	})

	t.Run("not taken for rejected requests", func(t *testing.T) {
		f, lock := newLocked(t)

		f.svc.ChangePassword(context.Background(), domain.ChangePasswordRequest{})
		f.sessions.SetSession(nil)
		f.svc.ChangePassword(context.Background(), validChange())

		assert.Empty(t, lock.Acquired())
	})

	t.Run("released after a mismatch", func(t *testing.T) {
		f, lock := newLocked(t)
		req := validChange()
		req.CurrentPassword = "wrong-current"

		result := f.svc.ChangePassword(context.Background(), req)

		assert.Equal(t, domain.ResultCredentialMismatch, result.Kind())
		assert.False(t, lock.IsHeld("credentials:"+testUserID))
	})

	t.Run("concurrent change in progress", func(t *testing.T) {
		f, lock := newLocked(t)
		lock.SetLockHeld("credentials:"+testUserID, time.Minute)

		result := f.svc.ChangePassword(context.Background(), validChange())

		assert.Equal(t, domain.ResultFailed, result.Kind())
		assert.Equal(t, domain.MsgUnableToUpdatePrefix+"corr-1", errorMessage(t, result))
		assert.Zero(t, f.store.Reads())
		assert.Empty(t, f.store.Writes())
		assert.Contains(t, f.logs.String(), "another password change is in progress")
	})

	t.Run("lock backend down", func(t *testing.T) {
		f, lock := newLocked(t)
		lock.AcquireFn = func(string, time.Duration) (bool, error) {
			return false, errors.New("dial tcp 10.0.0.5:6379: connection refused")
		}

		result := f.svc.ChangePassword(context.Background(), validChange())

		msg := errorMessage(t, result)
		assert.Equal(t, domain.ResultFailed, result.Kind())
		assert.NotContains(t, msg, "6379")
		assert.Empty(t, f.store.Writes())
	})

	t.Run("releases with the token it acquired", func(t *testing.T) {
		f, lock := newLocked(t)
		var released []string
		lock.ReleaseFn = func(name, token string) error {
			released = append(released, name+"="+token)
			return nil
		}

		result := f.svc.ChangePassword(context.Background(), validChange())

		assert.True(t, result.IsSuccess())
		assert.Equal(t, []string{"credentials:" + testUserID + "=token-1"}, released)
	})

	t.Run("stale release leaves the next holder in place", func(t *testing.T) {
		lock := mocks.NewMockDistributedLock()
		name := "credentials:" + testUserID
		ctx := context.Background()

		first, _, _ := lock.Acquire(ctx, name, time.Millisecond)
		time.Sleep(5 * time.Millisecond)
		second, acquired, _ := lock.Acquire(ctx, name, time.Minute)
		require.True(t, acquired)

		require.NoError(t, lock.Release(ctx, name, first))
		assert.True(t, lock.IsHeld(name))

		require.NoError(t, lock.Release(ctx, name, second))
		assert.False(t, lock.IsHeld(name))
	})

	t.Run("release failure does not change the result", func(t *testing.T) {
		f, lock := newLocked(t)
		lock.ReleaseFn = func(string, string) error { return errors.New("release failed") }

		result := f.svc.ChangePassword(context.Background(), validChange())

		assert.True(t, result.IsSuccess())
		assert.Contains(t, f.logs.String(), "failed to release credential lock")
	})
}

func TestNewCredentialService_DefaultLockTTL(t *testing.T) {
	svc := NewCredentialService(CredentialServiceConfig{
		Sessions: mocks.NewMockSessionProvider(nil),
		Store:    mocks.NewMockCredentialStore(),
		Hasher:   mocks.NewMockAuthAdapter(),
	}).(*credentialService)

	assert.Equal(t, DefaultCredentialLockTTL, svc.lockTTL)
	assert.Nil(t, svc.lock)
}

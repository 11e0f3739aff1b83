package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrAlreadyExists", ErrAlreadyExists, "already exists"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrForbidden", ErrForbidden, "forbidden"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
		{"ErrSessionNotFound", ErrSessionNotFound, "session not found"},
		{"ErrInvalidCredentials", ErrInvalidCredentials, "invalid credentials"},
		{"ErrUnsupportedHash", ErrUnsupportedHash, "unsupported password hash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrSessionNotFound,
		ErrInvalidCredentials,
		ErrUnsupportedHash,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "NewPassword", Message: MsgNewPasswordTooShort}

	if err.Error() != MsgNewPasswordTooShort {
		t.Errorf("expected %q, got %q", MsgNewPasswordTooShort, err.Error())
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}

	wrapped := fmt.Errorf("validate: %w", err)
	var ve *ValidationError
	if !errors.As(wrapped, &ve) {
		t.Fatal("expected errors.As to find the ValidationError")
	}
	if ve.Field != "NewPassword" {
		t.Errorf("expected field NewPassword, got %s", ve.Field)
	}
}

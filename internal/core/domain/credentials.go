package domain

import "encoding/json"

// MinPasswordLength is the minimum number of characters in a new password
const MinPasswordLength = 8

// Change-password outcome messages shown to the caller
const (
	MsgPasswordUpdated      = "Password updated successfully"
	MsgUnauthorized         = "Unauthorized"
	MsgInvalidInput         = "Invalid input"
	MsgCurrentPasswordWrong = "Current password is incorrect"
	MsgUnableToUpdatePrefix = "Unable to update password. ID: "
	MsgCurrentRequired      = "Current password is required"
	MsgNewPasswordTooShort  = "New password must be at least 8 characters"
	MsgConfirmRequired      = "Please confirm your new password"
	MsgConfirmationMismatch = "New password and confirmation do not match"
)

// StoredCredential is the password hash held for a user
type StoredCredential struct {
	UserID       string `json:"user_id"`
	PasswordHash string `json:"-"`
}

// ChangePasswordRequest represents a password change by an authenticated user.
// Field values are secrets and must never be logged.
// @Description JSON keys are snake_case (current_password). Form keys are camelCase (currentPassword).
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" form:"currentPassword" validate:"required"`
	NewPassword     string `json:"new_password" form:"newPassword" validate:"min=8"`
	ConfirmPassword string `json:"confirm_password" form:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// String redacts the request so it cannot leak through formatting.
func (r ChangePasswordRequest) String() string {
	return "ChangePasswordRequest{[redacted]}"
}

// ResultKind discriminates a ChangePasswordResult
type ResultKind int

const (
	ResultSuccess ResultKind = iota + 1
	ResultUnauthorized
	ResultInvalid
	ResultCredentialMismatch
	ResultFailed
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultUnauthorized:
		return "unauthorized"
	case ResultInvalid:
		return "invalid"
	case ResultCredentialMismatch:
		return "credential_mismatch"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChangePasswordResult is exactly one of a success message or an error message.
// Build it with Succeeded or Failed; the zero value is not a valid result.
type ChangePasswordResult struct {
	kind    ResultKind
	message string
}

// Succeeded returns a success result
func Succeeded(message string) ChangePasswordResult {
	return ChangePasswordResult{kind: ResultSuccess, message: message}
}

// Failed returns an error result of the given kind
func Failed(kind ResultKind, message string) ChangePasswordResult {
	if kind == ResultSuccess {
		kind = ResultFailed
	}
	return ChangePasswordResult{kind: kind, message: message}
}

// Kind returns the result discriminant
func (r ChangePasswordResult) Kind() ResultKind {
	return r.kind
}

// IsSuccess reports whether the password was changed
func (r ChangePasswordResult) IsSuccess() bool {
	return r.kind == ResultSuccess
}

// SuccessMessage returns the success message, if this is a success result
func (r ChangePasswordResult) SuccessMessage() (string, bool) {
	if r.kind != ResultSuccess {
		return "", false
	}
	return r.message, true
}

// ErrorMessage returns the error message, if this is an error result
func (r ChangePasswordResult) ErrorMessage() (string, bool) {
	if r.kind == ResultSuccess || r.kind == 0 {
		return "", false
	}
	return r.message, true
}

// MarshalJSON encodes the result as {"success": ...} or {"error": ...}
func (r ChangePasswordResult) MarshalJSON() ([]byte, error) {
	if msg, ok := r.SuccessMessage(); ok {
		return json.Marshal(map[string]string{"success": msg})
	}
	msg, ok := r.ErrorMessage()
	if !ok {
		msg = MsgInvalidInput
	}
	return json.Marshal(map[string]string{"error": msg})
}

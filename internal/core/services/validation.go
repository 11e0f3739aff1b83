package services

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/restormel-core/internal/core/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// changePasswordFieldOrder is the precedence used when several fields fail
var changePasswordFieldOrder = []string{"CurrentPassword", "NewPassword", "ConfirmPassword"}

// changePasswordMessages maps field and failed rule to the message shown to the caller
var changePasswordMessages = map[string]map[string]string{
	"CurrentPassword": {
		"required": domain.MsgCurrentRequired,
	},
	"NewPassword": {
		"min": domain.MsgNewPasswordTooShort,
	},
	"ConfirmPassword": {
		"required": domain.MsgConfirmRequired,
		"eqfield":  domain.MsgConfirmationMismatch,
	},
}

// ValidateChangePassword checks the request shape and returns the single
// highest-precedence field message, or nil if the request is valid.
func ValidateChangePassword(req domain.ChangePasswordRequest) *domain.ValidationError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &domain.ValidationError{Message: domain.MsgInvalidInput}
	}

	failed := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.StructField()
		if _, seen := failed[field]; seen {
			continue
		}
		if msg, ok := changePasswordMessages[field][fe.Tag()]; ok {
			failed[field] = msg
		}
	}

	for _, field := range changePasswordFieldOrder {
		if msg, ok := failed[field]; ok {
			return &domain.ValidationError{Field: field, Message: msg}
		}
	}

	return &domain.ValidationError{Message: domain.MsgInvalidInput}
}

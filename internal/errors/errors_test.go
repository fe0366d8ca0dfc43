package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Account not found")
		assert.Equal(t, "NOT_FOUND: Account not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeStorageUnavailable, "Storage unavailable", cause)
		assert.Contains(t, err.Error(), "STORAGE_UNAVAILABLE")
		assert.Contains(t, err.Error(), "Storage unavailable")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "recipientId", "reason": "empty"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Unauthorized", func() *AppError { return Unauthorized("test") }, ErrCodeUnauthorized},
		{"Forbidden", func() *AppError { return Forbidden("test") }, ErrCodeForbidden},
		{"InvalidSignature", func() *AppError { return InvalidSignature() }, ErrCodeInvalidSignature},
		{"OAuthDenied", func() *AppError { return OAuthDenied("access_denied") }, ErrCodeOAuthDenied},
		{"InvalidState", func() *AppError { return InvalidState() }, ErrCodeInvalidState},
		{"NotFound", func() *AppError { return NotFound("Account") }, ErrCodeNotFound},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("provider", "unknown") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("recipientId") }, ErrCodeMissingRequired},
		{"NoCredentialAvailable", func() *AppError { return NoCredentialAvailable() }, ErrCodeNoCredentialAvailable},
		{"ProviderNotConfigured", func() *AppError { return ProviderNotConfigured("Google") }, ErrCodeProviderNotConfigured},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"UpstreamSendError", func() *AppError { return UpstreamSendError("(#100) bad recipient") }, ErrCodeUpstreamSendError},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestStorageUnavailable(t *testing.T) {
	t.Run("wraps storage error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := StorageUnavailable(cause)
		assert.Equal(t, ErrCodeStorageUnavailable, err.Code)
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestUpstreamUnavailable(t *testing.T) {
	t.Run("wraps transport error", func(t *testing.T) {
		cause := errors.New("timeout")
		err := UpstreamUnavailable("Graph API", cause)
		assert.Equal(t, ErrCodeUpstreamUnavailable, err.Code)
		assert.Contains(t, err.Message, "Graph API")
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestUpstreamSendErrorMessage(t *testing.T) {
	err := UpstreamSendError("(#551) This person isn't available right now.")
	assert.Equal(t, "(#551) This person isn't available right now.", err.Message)
}

func TestIsAppError(t *testing.T) {
	t.Run("returns true for AppError", func(t *testing.T) {
		err := New(ErrCodeNotFound, "test")
		assert.True(t, IsAppError(err))
	})

	t.Run("returns false for standard error", func(t *testing.T) {
		err := errors.New("standard error")
		assert.False(t, IsAppError(err))
	})

	t.Run("returns true for AppError wrapped with %w", func(t *testing.T) {
		appErr := NoCredentialAvailable()
		wrapped := fmt.Errorf("send: %w", appErr)
		assert.True(t, IsAppError(wrapped))
		assert.Equal(t, ErrCodeNoCredentialAvailable, GetCode(wrapped))
	})
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts AppError", func(t *testing.T) {
		original := New(ErrCodeNotFound, "Account not found")
		extracted, ok := AsAppError(original)
		assert.True(t, ok)
		assert.Equal(t, original, extracted)
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		err := errors.New("standard error")
		extracted, ok := AsAppError(err)
		assert.False(t, ok)
		assert.Nil(t, extracted)
	})
}

func TestGetCode(t *testing.T) {
	t.Run("returns code for AppError", func(t *testing.T) {
		err := New(ErrCodeNotFound, "test")
		assert.Equal(t, ErrCodeNotFound, GetCode(err))
	})

	t.Run("returns ErrCodeInternal for standard error", func(t *testing.T) {
		err := errors.New("standard error")
		assert.Equal(t, ErrCodeInternal, GetCode(err))
	})
}

func TestNotFoundMessage(t *testing.T) {
	t.Run("formats resource name correctly", func(t *testing.T) {
		err := NotFound("Account")
		assert.Equal(t, "Account not found", err.Message)

		err = NotFound("Connection")
		assert.Equal(t, "Connection not found", err.Message)
	})
}

func TestMissingRequiredMessage(t *testing.T) {
	t.Run("formats field name correctly", func(t *testing.T) {
		err := MissingRequired("recipientId")
		assert.Equal(t, "recipientId is required", err.Message)

		err = MissingRequired("text")
		assert.Equal(t, "text is required", err.Message)
	})
}

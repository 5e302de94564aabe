package autherr

import (
	"errors"
	"net/http"
)

var (
	ErrMalformedToken    = errors.New("malformed token")
	ErrTokenExpired      = errors.New("token expired")
	ErrWrongTokenKind    = errors.New("wrong token kind")
	ErrMissingToken      = errors.New("missing token")
	ErrInsufficientRole  = errors.New("insufficient role")
	ErrTokensNotValid    = errors.New("tokens not valid")
	ErrBothTokensExpired = errors.New("both tokens expired")
	ErrSessionNotFound   = errors.New("session not found")

	ErrIdentityNotFound   = errors.New("identity not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotVerified        = errors.New("identity not verified")

	ErrAlreadyRegistered    = errors.New("already registered")
	ErrAlreadyVerified      = errors.New("already verified")
	ErrVerificationExpired  = errors.New("verification code expired")
	ErrVerificationMismatch = errors.New("verification code mismatch")

	ErrDelivery   = errors.New("email delivery failed")
	ErrValidation = errors.New("validation")
)

const CodeInternal = "internal"

var kinds = []struct {
	err    error
	code   string
	status int
}{
	{ErrValidation, "validation", http.StatusBadRequest},
	{ErrMalformedToken, "malformed_token", http.StatusUnauthorized},
	{ErrTokenExpired, "token_expired", http.StatusUnauthorized},
	{ErrWrongTokenKind, "wrong_token_kind", http.StatusUnauthorized},
	{ErrMissingToken, "missing_token", http.StatusUnauthorized},
	{ErrTokensNotValid, "tokens_not_valid", http.StatusUnauthorized},
	{ErrBothTokensExpired, "both_tokens_expired", http.StatusUnauthorized},
	{ErrSessionNotFound, "session_not_found", http.StatusUnauthorized},
	{ErrIdentityNotFound, "identity_not_found", http.StatusUnauthorized},
	{ErrInvalidCredentials, "invalid_credentials", http.StatusUnauthorized},
	{ErrInsufficientRole, "insufficient_role", http.StatusForbidden},
	{ErrNotVerified, "not_verified", http.StatusForbidden},
	{ErrAlreadyRegistered, "already_registered", http.StatusConflict},
	{ErrAlreadyVerified, "already_verified", http.StatusConflict},
	{ErrVerificationMismatch, "verification_mismatch", http.StatusBadRequest},
	{ErrVerificationExpired, "verification_expired", http.StatusGone},
	{ErrDelivery, "delivery_failed", http.StatusBadGateway},
}

// HTTPStatus maps an error from the auth flows to the status code a handler
// should answer with. Unknown errors are internal.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Code is the stable machine-readable name of err, sent in error bodies.
func Code(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return CodeInternal
}

// FromCode is the inverse of Code. It returns nil for unknown codes.
func FromCode(code string) error {
	for _, k := range kinds {
		if k.code == code {
			return k.err
		}
	}
	return nil
}

// IsAccessDenied reports whether err is one of the interceptor rejections.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrInsufficientRole) ||
		errors.Is(err, ErrTokensNotValid) ||
		errors.Is(err, ErrBothTokensExpired)
}

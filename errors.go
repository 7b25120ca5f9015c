package sentinel

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeAuthRequired   = "authentication_required"
	TextCodeTokenExpired   = "token_expired"
	TextCodeTokenMalformed = "token_malformed"
	TextCodeForbidden      = "insufficient_privilege"
	TextCodeAccountLocked  = "account_locked"
	TextCodeSessionRevoked = "session_revoked"
	TextCodeInvalidUserID  = "invalid_user_id"
)

// ErrAuthenticationRequired is returned when a request carries no usable
// credential: missing, invalid, or expired token.
var ErrAuthenticationRequired = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeAuthRequired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when a token verified but is past its expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token cannot be parsed or its
// signature does not verify.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrInsufficientPrivilege is returned for a valid identity that lacks the
// privilege for the requested operation.
var ErrInsufficientPrivilege = errors.New("insufficient privilege", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrSessionRevoked is returned when a token names a session the registry no
// longer considers live.
var ErrSessionRevoked = errors.New("session revoked", errors.CategoryAuth).
	WithTextCode(TextCodeSessionRevoked).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidUserID is returned when an operation receives an empty user id.
var ErrInvalidUserID = errors.New("user id must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidUserID).
	WithCode(errors.CodeBadRequest)

// NewLockedAccountError describes an authentication rejected because the
// account is locked. Distinct from ErrAuthenticationRequired: the credential
// was fine, the account state was not. Carries the human-readable reason and
// the unlock horizon so callers can render an informative message.
func NewLockedAccountError(status AccountLockStatus) *errors.Error {
	meta := map[string]any{
		"reason": status.Reason.Description(),
	}
	if status.UnlockAt != nil {
		meta["unlock_at"] = status.UnlockAt.Format(time.RFC3339)
	}
	return errors.New("account is locked", errors.CategoryAuth).
		WithTextCode(TextCodeAccountLocked).
		WithCode(errors.CodeForbidden).
		WithMetadata(meta)
}

// IsLockedAccountError reports whether err carries the account-locked code.
func IsLockedAccountError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeAccountLocked
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

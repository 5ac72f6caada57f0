package auth

import (
	"errors"
	"fmt"

	"github.com/shuttertrack/shuttertrack/internal/auth/provider"
)

// Kind classifies auth failures for callers. InvalidInput never reached the
// network; ProviderRejected is an explicit remote refusal; Network is
// transient and callers may fall back to cached local state; Expired forces
// sign-out.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindProviderRejected
	KindNetwork
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindProviderRejected:
		return "provider rejected"
	case KindNetwork:
		return "network unavailable"
	case KindExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Error is the tagged result returned for every auth failure. Code is the
// provider's raw error code when one exists.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.cause }

// HasKind reports whether err is an auth Error of the given kind.
func HasKind(err error, kind Kind) bool {
	var authErr *Error
	return errors.As(err, &authErr) && authErr.Kind == kind
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// providerCategories maps raw provider codes to the fixed set of
// human-readable categories surfaced to users.
var providerCategories = map[string]string{
	"EMAIL_EXISTS":                "an account with this email already exists",
	"EMAIL_NOT_FOUND":             "incorrect email or password",
	"INVALID_PASSWORD":            "incorrect email or password",
	"INVALID_LOGIN_CREDENTIALS":   "incorrect email or password",
	"WEAK_PASSWORD":               "password is too weak",
	"USER_DISABLED":               "this account has been disabled",
	"TOO_MANY_ATTEMPTS_TRY_LATER": "too many attempts, please try again later",
	"OPERATION_NOT_ALLOWED":       "this sign-in method is not enabled",
}

// expiredCodes are rejections that mean the token material itself is no
// longer usable, rather than the request being wrong.
var expiredCodes = map[string]bool{
	"TOKEN_EXPIRED":         true,
	"INVALID_ID_TOKEN":      true,
	"INVALID_REFRESH_TOKEN": true,
	"USER_NOT_FOUND":        true,
}

// wrapProviderErr converts a wire-client error into the tagged taxonomy.
func wrapProviderErr(err error) *Error {
	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) {
		return &Error{Kind: KindNetwork, Message: "network unavailable", cause: err}
	}
	if expiredCodes[apiErr.Code] {
		return &Error{Kind: KindExpired, Code: apiErr.Code, Message: "session expired, please sign in again", cause: err}
	}
	message, ok := providerCategories[apiErr.Code]
	if !ok {
		message = "the sign-in service rejected the request"
	}
	return &Error{Kind: KindProviderRejected, Code: apiErr.Code, Message: message, cause: err}
}

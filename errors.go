package causality

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthorized       = "UNAUTHORIZED"
	TextCodeSaleNotFound       = "SALE_NOT_FOUND"
	TextCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	TextCodeInvalidRequest     = "INVALID_CAUSALITY_REQUEST"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeInvalidClaims      = "INVALID_CLAIMS"
	TextCodeInvalidTransition  = "INVALID_RESOLUTION_TRANSITION"
)

// ErrUnauthorized is returned when the caller asks for a role above their
// privilege. The message never says why.
var ErrUnauthorized = goerrors.New("Unauthorized", goerrors.CategoryAuthz).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeForbidden)

// ErrSaleNotFound is returned when a sale reference does not resolve
var ErrSaleNotFound = goerrors.New("sale not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeSaleNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrBackendUnavailable wraps directory service I/O failures
var ErrBackendUnavailable = goerrors.New("directory service unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeBackendUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrInvalidRequest is returned for requests with a bad shape
var ErrInvalidRequest = goerrors.New("invalid causality token request", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidRequest).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenMalformed is returned when a token cannot be verified
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidClaims is returned when a claim set breaks its invariants
var ErrInvalidClaims = goerrors.New("invalid causality claims", goerrors.CategoryInternal).
	WithTextCode(TextCodeInvalidClaims).
	WithCode(goerrors.CodeInternal)

// ErrInvalidTransition is returned when the resolver attempts a step out of order
var ErrInvalidTransition = goerrors.New("invalid resolution state transition", goerrors.CategoryInternal).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeInternal)

// IsUnauthorized reports whether err is a role denial
func IsUnauthorized(err error) bool {
	return hasTextCode(err, TextCodeUnauthorized)
}

// IsSaleNotFound reports whether err is an unresolvable sale reference
func IsSaleNotFound(err error) bool {
	return hasTextCode(err, TextCodeSaleNotFound)
}

// IsBackendUnavailable reports whether err is a directory failure
func IsBackendUnavailable(err error) bool {
	return hasTextCode(err, TextCodeBackendUnavailable)
}

// IsInvalidRequest reports whether err is a request validation failure
func IsInvalidRequest(err error) bool {
	return hasTextCode(err, TextCodeInvalidRequest)
}

// IsMalformedError will check for token verification failures
func IsMalformedError(err error) bool {
	return hasTextCode(err, TextCodeTokenMalformed)
}

// BackendError reports a failed directory call. Errors that already carry
// a causality text code (for example ErrSaleNotFound) pass through.
func BackendError(step string, cause error) error {
	if cause == nil {
		return nil
	}

	var richErr *goerrors.Error
	if errors.As(cause, &richErr) && richErr.TextCode != "" {
		return cause
	}

	return derive(ErrBackendUnavailable, "", cause, map[string]any{"step": step})
}

// derive clones a sentinel so callers can attach a cause and metadata
// while keeping its category and text code.
func derive(base *goerrors.Error, message string, cause error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	if message != "" {
		clone.Message = message
	}
	if cause != nil {
		clone.Source = cause
	}
	if len(meta) > 0 {
		clone = clone.WithMetadata(meta)
	}
	return clone
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	for errors.As(err, &richErr) {
		if richErr.TextCode == code {
			return true
		}
		if richErr.Source == nil {
			return false
		}
		err = richErr.Source
	}
	return false
}

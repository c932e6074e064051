package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure into the categories the caller can act on.
type Kind string

const (
	// KindAuth means the token is expired or invalid; the user must
	// re-authenticate.
	KindAuth Kind = "auth"

	// KindPermission means the token lacks the required OAuth scope.
	KindPermission Kind = "permission"

	// KindRateLimit means the upstream platform is throttling us; the
	// caller must back off.
	KindRateLimit Kind = "rate_limit"

	// KindNotFound means a referenced post is absent upstream.
	KindNotFound Kind = "not_found"

	// KindUpstream covers any other non-2xx response or transport failure.
	KindUpstream Kind = "upstream"

	// KindStore covers cache/log persistence failures. These are never
	// fatal to the primary operation; they are logged and swallowed.
	KindStore Kind = "store"
)

// Error is the typed error carried across the upstream client, the cache
// store and the sync orchestrator.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a typed error without a cause.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a typed error around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindUpstream for
// anything untyped (transport failures, context deadlines, ...).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// HTTPStatus maps a Kind to the stable external status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuth:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Guidance returns the user-facing message for a Kind. Rate-limit and
// auth failures carry actionable instructions; everything else stays
// generic so internal detail does not leak.
func (k Kind) Guidance() string {
	switch k {
	case KindAuth:
		return "Authentication expired. Please sign in again."
	case KindPermission:
		return "Insufficient permissions. Please check your X.com app settings."
	case KindRateLimit:
		return "Rate limit exceeded. Please try again in 15 minutes."
	case KindNotFound:
		return "The requested post could not be found."
	default:
		return "Failed to fetch bookmarks"
	}
}

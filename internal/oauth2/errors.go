package oauth2

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// ErrNotFound is returned by storage adapters when a record does not exist.
var ErrNotFound = errors.New("oauth2: record not found")

// ErrorKind is the RFC 6749 / 6750 error code of a protocol failure.
type ErrorKind string

const (
	KindInvalidClient        ErrorKind = "invalid_client"
	KindInvalidGrant         ErrorKind = "invalid_grant"
	KindInvalidScope         ErrorKind = "invalid_scope"
	KindInvalidRequest       ErrorKind = "invalid_request"
	KindUnsupportedGrantType ErrorKind = "unsupported_grant_type"
	KindAccessDenied         ErrorKind = "access_denied"
	KindExpiredToken         ErrorKind = "expired_token"
	KindInsufficientScope    ErrorKind = "insufficient_scope"
	KindServerError          ErrorKind = "server_error"
)

var kindStatus = map[ErrorKind]int{
	KindInvalidClient:        http.StatusUnauthorized,
	KindInvalidGrant:         http.StatusBadRequest,
	KindInvalidScope:         http.StatusBadRequest,
	KindInvalidRequest:       http.StatusBadRequest,
	KindUnsupportedGrantType: http.StatusBadRequest,
	KindAccessDenied:         http.StatusUnauthorized,
	KindExpiredToken:         http.StatusUnauthorized,
	KindInsufficientScope:    http.StatusForbidden,
	KindServerError:          http.StatusInternalServerError,
}

// Error is a protocol failure. It carries everything the host needs to build
// a reply: the RFC error code, an HTTP status, and, for errors raised after
// the redirect URI has been validated, the redirect target.
type Error struct {
	Kind        ErrorKind
	Status      int
	Description string
	RedirectURI string
	cause       error
	stack       []byte
}

// NewError builds an Error for the given kind. The HTTP status is derived
// from the kind.
func NewError(kind ErrorKind, description string) *Error {
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{Kind: kind, Status: status, Description: description, stack: debug.Stack()}
}

// ServerError wraps an unexpected failure as a 5xx protocol error, keeping
// the cause for logs.
func ServerError(cause error) *Error {
	e := NewError(KindServerError, "an unexpected error occurred")
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("oauth2: %s: %s: %v", e.Kind, e.Description, e.cause)
	}
	return fmt.Sprintf("oauth2: %s: %s", e.Kind, e.Description)
}

func (e *Error) Unwrap() error { return e.cause }

// Trace returns the call stack captured where the error was raised, with the
// cause appended when one exists. Debug-mode error payloads expose it.
func (e *Error) Trace() string {
	t := string(e.stack)
	if e.cause != nil {
		t = e.cause.Error() + "\n" + t
	}
	return t
}

// ShouldRedirect reports whether the host should answer with a redirect
// instead of an error body.
func (e *Error) ShouldRedirect() bool { return e.RedirectURI != "" }

// WithRedirect returns a copy of the error marked redirect-eligible. Only
// errors raised after the redirect URI has been validated may carry one.
func (e *Error) WithRedirect(uri string) *Error {
	cp := *e
	cp.RedirectURI = uri
	return &cp
}

// AsError converts any error into a protocol *Error, wrapping unexpected
// failures as server_error.
func AsError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return ServerError(err)
}

func invalidRequest(param string) *Error {
	return NewError(KindInvalidRequest, "missing or invalid parameter: "+param)
}

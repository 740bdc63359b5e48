// Package apperr defines the error kinds surfaced by the payment-request and
// reward services. Every error a service returns to its caller is either an
// *Error or wraps one; the HTTP layer maps the kind to a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and transports.
type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindExternalProvisioning Kind = "external_provisioning"
	KindAttributionFailed    Kind = "attribution_failed"
	KindInternal             Kind = "internal_error"
)

// Error carries a kind, a caller-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches bare sentinels (no message, no cause) of the same kind, so
// errors.Is(err, ErrNotFound) holds for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

// sentinels for errors.Is
var (
	ErrInvalidInput         = &Error{Kind: KindInvalidInput}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrExternalProvisioning = &Error{Kind: KindExternalProvisioning}
	ErrAttributionFailed    = &Error{Kind: KindAttributionFailed}
)

func InvalidInput(msg string) *Error { return &Error{Kind: KindInvalidInput, Message: msg} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// ExternalProvisioning wraps a failed interaction with the identity provider's
// registration endpoint.
func ExternalProvisioning(msg string, cause error) *Error {
	return &Error{Kind: KindExternalProvisioning, Message: msg, Cause: cause}
}

// AttributionFailed wraps a failed reward submission, including a
// provisioning failure that happened on the way.
func AttributionFailed(msg string, cause error) *Error {
	return &Error{Kind: KindAttributionFailed, Message: msg, Cause: cause}
}

// KindOf reports the kind of the outermost *Error in err's chain.
// Errors that carry no kind are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of the outermost *Error,
// falling back to a generic text so internal details never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps a kind to a response status.
func HTTPStatus(k Kind) int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExternalProvisioning, KindAttributionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

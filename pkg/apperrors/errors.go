// Package apperrors defines the error taxonomy shared by providers, the
// orchestrator, and the HTTP layer.
//
// Failures are normalized into coded errors so callers can branch on the
// category without string matching: validation failures abort a request,
// rate limits carry a next-available instant, provider and session failures
// are contained at the source level.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code is the normalized failure category.
type Code string

const (
	// CodeValidation marks malformed local input. Non-retryable.
	CodeValidation Code = "validation"

	// CodeRateLimited marks admission denial by a source limiter. Recoverable
	// after NextAvailableAt, or by serving cache.
	CodeRateLimited Code = "rate_limited"

	// CodeProvider marks a transport or parse failure from an external source.
	CodeProvider Code = "provider"

	// CodeSession marks a login/handshake failure for the stateful source.
	// Fatal when credentials are missing.
	CodeSession Code = "session"

	// CodeNotFound marks a missing record.
	CodeNotFound Code = "not_found"

	// CodeInternal marks an unexpected internal error.
	CodeInternal Code = "internal"
)

// Error is a coded error carrying the originating source and, where known,
// the upstream HTTP status and the rate-limit release instant.
type Error struct {
	Code            Code
	Source          string
	Message         string
	HTTPStatus      int
	NextAvailableAt *time.Time
	Err             error
}

func (e *Error) Error() string {
	switch {
	case e.Source != "" && e.Err != nil:
		return fmt.Sprintf("%s [%s]: %s: %v", e.Source, e.Code, e.Message, e.Err)
	case e.Source != "":
		return fmt.Sprintf("%s [%s]: %s", e.Source, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("[%s]: %s: %v", e.Code, e.Message, e.Err)
	default:
		return fmt.Sprintf("[%s]: %s", e.Code, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without an underlying cause.
func New(code Code, source, message string) *Error {
	return &Error{Code: code, Source: source, Message: message}
}

// Wrap creates a coded error around an underlying cause.
func Wrap(err error, code Code, source, message string) *Error {
	return &Error{Code: code, Source: source, Message: message, Err: err}
}

// RateLimited creates a rate-limit error carrying the release instant.
func RateLimited(source string, nextAvailable *time.Time) *Error {
	return &Error{
		Code:            CodeRateLimited,
		Source:          source,
		Message:         "rate limit exceeded",
		HTTPStatus:      http.StatusTooManyRequests,
		NextAvailableAt: nextAvailable,
	}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// AsError extracts the coded error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// ToHTTPStatus maps a code to the response status the HTTP layer should use.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeNotFound:
		return http.StatusNotFound
	case CodeProvider, CodeSession:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

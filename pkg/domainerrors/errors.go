package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping. Services attach codes;
// handlers translate them to HTTP statuses without inspecting error strings.
type Code string

const (
	CodeBadRequest  Code = "bad_request"
	CodeNotFound    Code = "not_found"
	CodeDuplicate   Code = "duplicate"
	CodeUpstream    Code = "upstream_error"
	CodeUnavailable Code = "unavailable"
	CodeInternal    Code = "internal_error"
)

// Error is a coded domain error with a caller-safe message. Wrapped causes stay
// internal; only Message is ever rendered to clients.
type Error struct {
	Code    Code
	Message string
	// HTTPStatus overrides the default mapping when the failure originates
	// from an upstream response whose status should pass through.
	HTTPStatus int
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with a caller-safe message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a coded error around a cause. The cause is preserved for logs
// and errors.Is checks but never shown to clients.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Upstream builds an upstream-coded error that carries the collaborator's own
// HTTP status so it can be surfaced verbatim.
func Upstream(status int, message string) *Error {
	return &Error{Code: CodeUpstream, Message: message, HTTPStatus: status}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ToHTTPStatus maps a coded error to an HTTP status. Unknown errors map to 500.
func ToHTTPStatus(err error) int {
	var de *Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	if de.HTTPStatus != 0 {
		return de.HTTPStatus
	}
	switch de.Code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicate:
		return http.StatusConflict
	case CodeUpstream:
		return http.StatusBadGateway
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// SafeMessage returns the client-facing message for err, or a generic one when
// err is not a coded error.
func SafeMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal server error"
}

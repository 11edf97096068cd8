// Package domainerrors carries coded errors across service boundaries.
// Services attach a Code so transport layers can translate failures into
// consistent HTTP responses without inspecting error strings, and an optional
// per-field detail map so form callers can render field-level messages.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain failure. Validation codes are expected and
// user-recoverable; integrity and infrastructure codes are not.
type Code string

const (
	// Validation failures: frequent, reported per field, client retryable
	// after correcting input.
	CodeInvalidArgument Code = "invalid_argument"
	CodeFieldMissing    Code = "field_missing"
	CodeDocumentInvalid Code = "document_invalid"
	CodeEmailInvalid    Code = "email_invalid"
	CodeBotCheckFailed  Code = "bot_check_failed"

	// Conflicts: expected, but surfaced with a dedicated message so the UI
	// can distinguish "already registered" from malformed input.
	CodeDocumentAlreadyRegistered Code = "document_already_registered"
	CodeConflict                  Code = "conflict"

	// Lookup and protocol failures.
	CodeSessionNotFound     Code = "session_not_found"
	CodeNotFound            Code = "not_found"
	CodeSessionStateInvalid Code = "session_state_invalid"

	// Auth.
	CodeUnauthorized Code = "unauthorized"

	// Infrastructure: retryable, never conflated with validation.
	CodeUnavailable Code = "unavailable"
	CodeTimeout     Code = "timeout"
	CodeInternal    Code = "internal"
)

// Error is the concrete coded error type. Fields maps field name to a
// human-readable message when the failure is attributable to specific inputs.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New builds a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while keeping it in the chain
// for errors.Is / errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, wrapped: err}
}

// WithFields attaches per-field messages, returning the same error for
// chaining.
func (e *Error) WithFields(fields map[string]string) *Error {
	e.Fields = fields
	return e
}

// WithField attaches a single field message.
func (e *Error) WithField(field, message string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]string, 1)
	}
	e.Fields[field] = message
	return e
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.wrapped
	}
	return false
}

// CodeOf returns the code of the outermost coded error, or CodeInternal when
// the chain carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// FieldsOf returns the field detail map of the outermost coded error, if any.
func FieldsOf(err error) map[string]string {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}

// IsRetryable reports whether the failure is an infrastructure fault the
// caller may retry, as opposed to a validation or conflict outcome.
func IsRetryable(err error) bool {
	code := CodeOf(err)
	return code == CodeUnavailable || code == CodeTimeout
}

// ToHTTPStatus maps a code onto the HTTP status the transport layer should
// emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidArgument, CodeFieldMissing, CodeDocumentInvalid,
		CodeEmailInvalid, CodeBotCheckFailed:
		return http.StatusBadRequest
	case CodeDocumentAlreadyRegistered, CodeConflict, CodeSessionStateInvalid:
		return http.StatusConflict
	case CodeSessionNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

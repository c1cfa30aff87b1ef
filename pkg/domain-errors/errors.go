// Package domainerrors defines coded errors that services return and
// transports translate. Stores return sentinel errors from
// pkg/platform/sentinel; services wrap those into one of the codes below.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies an error for transports and callers.
type Code string

const (
	// CodeValidation marks input rejected before any store call. Field-level
	// messages are attached with WithFields.
	CodeValidation Code = "validation_error"
	// CodeInvalidInput marks a value that failed parsing at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks a structurally malformed request.
	CodeBadRequest Code = "bad_request"
	// CodeStore marks an insert/select/update rejected by the data store,
	// including rows hidden by its row-level policy.
	CodeStore        Code = "store_error"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	// CodeRateLimited marks a caller that must wait before retrying.
	CodeRateLimited Code = "rate_limited"
	CodeInternal    Code = "internal_error"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	fields  map[string]string
	cause   error
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error that keeps err as its cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithFields returns a copy of e carrying per-field messages.
func (e *Error) WithFields(fields map[string]string) *Error {
	cp := *e
	cp.fields = make(map[string]string, len(fields))
	for k, v := range fields {
		cp.fields[k] = v
	}
	return &cp
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error with the same code and message, so tests can use
// errors.Is against a freshly constructed value.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// HasCode reports whether err (or anything it wraps) is an *Error with code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Fields returns the per-field messages attached to err, or nil.
func Fields(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.fields
	}
	return nil
}

// ToHTTPStatus maps a code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeStore:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

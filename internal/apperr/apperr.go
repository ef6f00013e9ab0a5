// Package apperr defines the service-wide error taxonomy. Every failure that
// crosses a package boundary is (or wraps) an *Error, so handlers can map it
// to an HTTP status and a stable machine-readable code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values by code and message, so errors.Is works on the
// sentinels below even after wrapping with fmt.Errorf("...: %w", err).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches an underlying cause to a copy of the given sentinel.
func Wrap(sentinel *Error, err error) *Error {
	return &Error{Code: sentinel.Code, Message: sentinel.Message, Err: err}
}

// Internal wraps an unexpected fault (storage failure, etc).
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}

var (
	ErrRoomNotFound       = New(CodeNotFound, "room not found")
	ErrRoomExpired        = New(CodeConflict, "room has expired")
	ErrRoomFull           = New(CodeConflict, "room is full")
	ErrRoomFinished       = New(CodeConflict, "race has already finished")
	ErrRoomInGame         = New(CodeConflict, "race is already in progress")
	ErrAlreadyInRoom      = New(CodeConflict, "user is already in this room")
	ErrRoomLimitExceeded  = New(CodeConflict, "active room limit reached for this user")
	ErrJoinCodeGeneration = New(CodeConflict, "could not allocate a unique join code")
	ErrInvalidTransition  = New(CodeConflict, "illegal room status transition")
	ErrDuplicateJoinCode  = New(CodeConflict, "join code already in use")
	ErrMemberNotFound     = New(CodeNotFound, "membership not found")
	ErrUnauthorized       = New(CodeUnauthorized, "not authorized")
	ErrUserNotFound       = New(CodeNotFound, "user not found")
)

// Validation builds a request-specific validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// HTTPStatus maps an error to a response status. Unknown errors are 500.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf extracts the taxonomy code, defaulting to INTERNAL.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

package apperr

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeValidation      Code = "validation_error"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeVersionConflict Code = "version_conflict"
	CodeForbidden       Code = "forbidden"
	CodeUnauthorized    Code = "unauthorized"
	CodeInvalidState    Code = "invalid_state"
	CodeUnavailable     Code = "unavailable"
	CodeStorage         Code = "storage_unavailable"
	CodeInternal        Code = "internal"
)

// Error is a service failure that carries enough information for the
// transport layer to pick a status code and a client-facing message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

func Validation(message string) *Error {
	return New(CodeValidation, message)
}

func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

func VersionConflict(entity string) *Error {
	return New(CodeVersionConflict, entity+" was modified by another request")
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

func InvalidState(message string) *Error {
	return New(CodeInvalidState, message)
}

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message)
}

func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Message returns the client-facing message; internal errors never leak their cause.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Code != CodeInternal {
		return appErr.Message
	}
	return "internal server error"
}

func Is(err error, code Code) bool {
	return GetCode(err) == code
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeVersionConflict, CodeInvalidState:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUnavailable, CodeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

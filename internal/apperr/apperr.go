// Package apperr defines the error taxonomy shared by services, handlers and middleware.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeNotFound     Code = "NOT_FOUND"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeConflict     Code = "CONFLICT"
	CodeDatabase     Code = "DATABASE_ERROR"
	CodeUnexpected   Code = "UNEXPECTED_ERROR"
	CodeRateLimited  Code = "RATE_LIMITED"
)

var statusByCode = map[Code]int{
	CodeNotFound:     http.StatusNotFound,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeForbidden:    http.StatusForbidden,
	CodeValidation:   http.StatusBadRequest,
	CodeConflict:     http.StatusConflict,
	CodeDatabase:     http.StatusInternalServerError,
	CodeUnexpected:   http.StatusInternalServerError,
	CodeRateLimited:  http.StatusTooManyRequests,
}

// Error is the failure value every data-access function returns across its boundary.
// Message is safe to show to the caller; Err is the internal cause and is never serialized.
type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) HTTPStatus() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

func Validation(message string, fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: message, Fields: fields}
}

// Conflict carries user-facing uniqueness failures such as "Username is already taken".
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

func Database(message string, err error) *Error {
	return &Error{Code: CodeDatabase, Message: message, Err: err}
}

func Unexpected(message string, err error) *Error {
	return &Error{Code: CodeUnexpected, Message: message, Err: err}
}

// From returns err as an *Error, classifying anything unknown as UNEXPECTED_ERROR.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Unexpected("Something went wrong", err)
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

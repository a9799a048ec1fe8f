// Package apierr defines the typed domain errors shared by the store,
// draft engine, audit engine, tool registry, and HTTP facade so all five
// surfaces map failures to the same wire codes.
package apierr

import (
	"errors"
	"fmt"
)

// Code is one of the four domain error kinds from the error handling design.
type Code string

const (
	Validation Code = "VALIDATION"
	NotFound   Code = "NOT_FOUND"
	Conflict   Code = "CONFLICT"
	Internal   Code = "INTERNAL"
)

// Error is a typed domain error carrying a stable code and a human message.
type Error struct {
	Code    Code
	Message string
	Err     error
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

func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, format, args...)
}

func Conflictf(format string, args ...interface{}) *Error {
	return New(Conflict, format, args...)
}

func Validationf(format string, args ...interface{}) *Error {
	return New(Validation, format, args...)
}

func Internalf(err error, format string, args ...interface{}) *Error {
	return Wrap(Internal, err, format, args...)
}

// CodeOf extracts the Code from err, defaulting to Internal for untyped errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return Internal
}

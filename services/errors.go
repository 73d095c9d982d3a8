package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failure with the HTTP status it maps to. Message is safe to
// show to callers; Err keeps the cause for logs.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validation(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "validation", Message: message}
}

func unauthenticated(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "unauthenticated", Message: message}
}

func notFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: "not_found", Message: message}
}

func internal(message string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "internal", Message: message, Err: err}
}

// AsError extracts an *Error from err. Anything else becomes a generic
// internal error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internal("Internal Server Error", err)
}

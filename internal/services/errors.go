package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation_error"
	KindAuthorization ErrorKind = "authorization_error"
	KindConflict      ErrorKind = "conflict_error"
	KindNotFound      ErrorKind = "not_found"
)

// Error is a failure the caller caused. Anything else returned by a service
// is an internal fault.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrIssueResolved is returned when resolution is requested for an issue
// that is already RESOLVED. Match it with errors.Is.
var ErrIssueResolved = conflictError("issue is already resolved")

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

func authorizationError(format string, args ...interface{}) *Error {
	return newError(KindAuthorization, format, args...)
}

func conflictError(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

func notFoundError(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

// KindOf returns the kind of err, or "" for internal errors.
func KindOf(err error) ErrorKind {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

package services

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindUnauthenticated  ErrorKind = "unauthenticated"
	KindForbidden        ErrorKind = "forbidden"
	KindNotFound         ErrorKind = "not_found"
	KindConflict         ErrorKind = "conflict"
	KindInvalidReference ErrorKind = "invalid_reference"
)

type ServiceError struct {
	Kind    ErrorKind
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Status maps the error kind to its HTTP status code.
func (e *ServiceError) Status() int {
	switch e.Kind {
	case KindValidation, KindInvalidReference:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func ErrValidation(msg string) error {
	return &ServiceError{Kind: KindValidation, Message: msg}
}

func ErrUnauthenticated(msg string) error {
	return &ServiceError{Kind: KindUnauthenticated, Message: msg}
}

func ErrForbidden(msg string) error {
	return &ServiceError{Kind: KindForbidden, Message: msg}
}

func ErrNotFound(msg string) error {
	return &ServiceError{Kind: KindNotFound, Message: msg}
}

func ErrConflict(msg string) error {
	return &ServiceError{Kind: KindConflict, Message: msg}
}

func ErrInvalidReference(msg string) error {
	return &ServiceError{Kind: KindInvalidReference, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsKind reports whether err is a ServiceError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	se, ok := AsServiceError(err)
	return ok && se.Kind == kind
}

func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

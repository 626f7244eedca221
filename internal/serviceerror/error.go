package serviceerror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so boundaries can branch on it without string matching.
type Kind string

const (
	KindValidation  Kind = "validation_error"
	KindAuth        Kind = "auth_error"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindStorage     Kind = "storage_error"
	KindTransaction Kind = "transaction_error"
	KindInternal    Kind = "internal_server_error"
)

// ServiceError is the error value returned across service boundaries.
type ServiceError struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, status int, message string, err error) *ServiceError {
	return &ServiceError{Kind: kind, Status: status, Message: message, Err: err}
}

// Validation reports bad input shape (400).
func Validation(message string, err error) *ServiceError {
	return newError(KindValidation, http.StatusBadRequest, message, err)
}

// Unauthorized reports an unresolvable signing key (401).
func Unauthorized(message string) *ServiceError {
	return newError(KindAuth, http.StatusUnauthorized, message, nil)
}

// Forbidden reports a bad algorithm, signature or missing permission (403).
func Forbidden(message string) *ServiceError {
	return newError(KindAuth, http.StatusForbidden, message, nil)
}

// NotFound reports a missing account, service, connection or document (404).
func NotFound(message string) *ServiceError {
	return newError(KindNotFound, http.StatusNotFound, message, nil)
}

// Conflict reports a state clash such as an existing connection (409).
func Conflict(message string) *ServiceError {
	return newError(KindConflict, http.StatusConflict, message, nil)
}

// Storage reports a PDS failure other than a missing entry.
func Storage(message string, err error) *ServiceError {
	return newError(KindStorage, http.StatusInternalServerError, message, err)
}

// Transaction reports a failed atomic batch. The batch has been rolled back.
func Transaction(message string, err error) *ServiceError {
	return newError(KindTransaction, http.StatusInternalServerError, message, err)
}

// Internal wraps anything else.
func Internal(message string, err error) *ServiceError {
	return newError(KindInternal, http.StatusInternalServerError, message, err)
}

// As extracts a ServiceError from an error chain.
func As(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	se, ok := As(err)
	return ok && se.Kind == kind
}

// StatusOf maps an error to the HTTP status it should produce.
func StatusOf(err error) int {
	if se, ok := As(err); ok && se.Status != 0 {
		return se.Status
	}
	return http.StatusInternalServerError
}

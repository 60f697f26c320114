package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// ErrorKind classifies a ServiceError for transport mapping
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindInternal
)

// ServiceError is the error every service operation returns for expected failures.
// Code is machine readable; Details carries context such as the current status.
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus maps the error kind onto a response status
func (e *ServiceError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// With attaches a detail value and returns the same error
func (e *ServiceError) With(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(kind ErrorKind, code, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError reports malformed or unacceptable input (400)
func NewValidationError(code, format string, args ...interface{}) *ServiceError {
	return newError(KindValidation, code, format, args...)
}

// NewNotFoundError reports a missing resource (404)
func NewNotFoundError(code, format string, args ...interface{}) *ServiceError {
	return newError(KindNotFound, code, format, args...)
}

// NewConflictError reports a state conflict the caller must treat as authoritative (409)
func NewConflictError(code, format string, args ...interface{}) *ServiceError {
	return newError(KindConflict, code, format, args...)
}

// NewUnauthorizedError reports a missing or unusable identity (401)
func NewUnauthorizedError(code, format string, args ...interface{}) *ServiceError {
	return newError(KindUnauthorized, code, format, args...)
}

// NewForbiddenError reports an identity without the right to act (403)
func NewForbiddenError(code, format string, args ...interface{}) *ServiceError {
	return newError(KindForbidden, code, format, args...)
}

// NewInternalError wraps an unexpected failure (500). The cause is kept for logs only.
func NewInternalError(code string, cause error) *ServiceError {
	return &ServiceError{
		Kind:    KindInternal,
		Code:    code,
		Message: "An internal error occurred",
		Details: map[string]interface{}{"cause": cause.Error()},
	}
}

// AsServiceError unwraps err into a ServiceError, classifying anything else as internal
func AsServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFoundError("NOT_FOUND", "Resource not found")
	}
	return NewInternalError("INTERNAL_ERROR", err)
}

// isUniqueViolation detects duplicate key failures (works with both PostgreSQL and SQLite)
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate") ||
		strings.Contains(errMsg, "unique constraint") ||
		strings.Contains(errMsg, "unique")
}

// notFoundOr converts gorm.ErrRecordNotFound into a coded 404 and wraps anything else
func notFoundOr(err error, code, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFoundError(code, "%s", message)
	}
	return NewInternalError("DATABASE_ERROR", err)
}

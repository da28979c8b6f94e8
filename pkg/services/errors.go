// Package services provides the mapping and project operations shared by the API and the CLI.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/flowprobe/pkg/bpmn"
	"github.com/dukex/flowprobe/pkg/openapi"
	"github.com/dukex/flowprobe/pkg/persistence"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrParseFailed    = errors.New("parse failed")
)

// Not found errors (404).
var (
	ErrProjectNotFound = persistence.ErrProjectNotFound
	ErrRunNotFound     = persistence.ErrRunNotFound
	ErrJobNotFound     = persistence.ErrJobNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// IsParseError reports whether err comes from a malformed BPMN or OpenAPI document.
func IsParseError(err error) bool {
	return errors.Is(err, ErrParseFailed) ||
		errors.Is(err, bpmn.ErrInvalidDocument) ||
		errors.Is(err, openapi.ErrInvalidSpec)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func newParseError(op, document string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    "parse_error",
		Message: fmt.Sprintf("invalid %s: %v", document, err),
		Err:     errors.Join(ErrParseFailed, err),
	}
}

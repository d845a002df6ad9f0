// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/stageflow/pkg/builder"
	"github.com/dukex/stageflow/pkg/directory"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/dukex/stageflow/pkg/wizard"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")

	// Lookup Errors (404 Not Found).
	ErrSessionNotFound = errors.New("authoring session not found")
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
// Field validation failures are reported separately by IsFieldValidationError.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, models.ErrInvalidPreset) ||
		errors.Is(err, models.ErrInvalidStageType) ||
		errors.Is(err, models.ErrInvalidExecutionMode) ||
		errors.Is(err, models.ErrInvalidActorKind) ||
		errors.Is(err, models.ErrInvalidDocument) ||
		errors.Is(err, directory.ErrUnknownActor)
}

// IsFieldValidationError checks if basic info validation failed on one or more fields.
func IsFieldValidationError(err error) bool {
	return errors.Is(err, wizard.ErrFieldValidation)
}

// IsIncompleteStagesError checks if publishing was blocked by incomplete stages (HTTP 422).
func IsIncompleteStagesError(err error) bool {
	return errors.Is(err, wizard.ErrIncompleteStages)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, builder.ErrMinimumStages) ||
		errors.Is(err, wizard.ErrWrongPhase) ||
		errors.Is(err, wizard.ErrSessionClosed)
}

// IsNotFoundError checks if an error refers to a missing session, stage or definition (HTTP 404).
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, builder.ErrStageNotFound) ||
		errors.Is(err, persistence.ErrDefinitionNotFound) ||
		errors.Is(err, persistence.ErrPublishedDefinitionNotFound)
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

func newError(op string, err error) *ServiceError {
	return &ServiceError{Op: op, Err: err}
}

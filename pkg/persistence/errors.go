// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDefinitionNotFound indicates a definition was not found by the given identifier.
	ErrDefinitionNotFound = errors.New("definition not found")

	// ErrPublishedDefinitionNotFound indicates no published definition exists for the given group.
	ErrPublishedDefinitionNotFound = errors.New("published definition not found")

	// ErrDefinitionNil indicates a nil definition was handed to the repository.
	ErrDefinitionNil = errors.New("definition cannot be nil")
)

// DefinitionError wraps definition-related errors with additional context.
type DefinitionError struct {
	Op           string // Operation being performed (e.g., "GetByID", "SaveDraft", "Publish")
	DefinitionID string // Definition ID if applicable
	GroupID      string // Definition group ID if applicable
	Err          error  // Underlying error
}

func (e *DefinitionError) Error() string {
	target := e.DefinitionID
	if e.GroupID != "" {
		target = "group " + e.GroupID
	}

	return fmt.Sprintf("%s operation failed for definition %s: %v", e.Op, target, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for definition errors.
func (e *DefinitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDefinitionError creates a new definition error with context.
func NewDefinitionError(op, definitionID string, err error) *DefinitionError {
	return &DefinitionError{
		Op:           op,
		DefinitionID: definitionID,
		Err:          err,
	}
}

// NewGroupError creates a new definition error for group operations.
func NewGroupError(op, groupID string, err error) *DefinitionError {
	return &DefinitionError{
		Op:      op,
		GroupID: groupID,
		Err:     err,
	}
}

// IsDefinitionNotFound checks if an error indicates a definition was not found.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// IsPublishedDefinitionNotFound checks if an error indicates a published definition was not found.
func IsPublishedDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrPublishedDefinitionNotFound)
}

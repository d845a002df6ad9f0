// Package persistence provides the storage abstraction for workflow definitions.
package persistence

import (
	"context"

	"github.com/dukex/stageflow/pkg/models"
)

// DraftID identifies a stored draft version.
type DraftID string

// PublishedID identifies a stored published version.
type PublishedID string

// Persistence is the storage backend used by the API.
type Persistence interface {
	DefinitionRepository() DefinitionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefinitionRepository stores definition versions.
//
// Stored versions are immutable: SaveDraft and Publish always create a new record
// with a fresh ID in the definition's group, numbered after the latest version of
// that group. Implementations store a copy, so the caller's value is never retained.
type DefinitionRepository interface {
	// SaveDraft stores the definition as a draft. No completeness checks apply.
	SaveDraft(ctx context.Context, definition *models.Definition) (DraftID, error)

	// Publish stores the definition as the published version of its group and marks
	// previously published versions of that group unpublished. Callers must pass a
	// definition whose stages are all complete.
	Publish(ctx context.Context, definition *models.Definition) (PublishedID, error)

	// GetByID returns the stored version or ErrDefinitionNotFound.
	GetByID(ctx context.Context, id string) (*models.Definition, error)

	// ListByGroup returns every version of a group ordered by version number.
	ListByGroup(ctx context.Context, groupID string) ([]*models.Definition, error)

	// GetPublished returns the published version of a group or ErrPublishedDefinitionNotFound.
	GetPublished(ctx context.Context, groupID string) (*models.Definition, error)

	// Delete removes a stored version. Deleting an absent version is not an error.
	Delete(ctx context.Context, id string) error
}

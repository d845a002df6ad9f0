package persistence

import (
	"fmt"
	"time"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/google/uuid"
)

// NewVersion returns the record to store for definition: a copy carrying a fresh ID,
// the next version number after latest, the given status and timestamps. A definition
// without a group starts a new one.
func NewVersion(definition *models.Definition, status models.DefinitionStatus, latest int, now time.Time) (*models.Definition, error) {
	if definition == nil {
		return nil, ErrDefinitionNil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate definition ID: %w", err)
	}

	version := definition.Clone()
	version.ID = id.String()
	version.Version = latest + 1
	version.Status = status
	version.CreatedAt = now
	version.UpdatedAt = now
	version.PublishedAt = nil

	if version.GroupID == "" {
		version.GroupID = uuid.New().String()
	}

	if status == models.DefinitionStatusPublished {
		publishedAt := now
		version.PublishedAt = &publishedAt
	}

	return version, nil
}

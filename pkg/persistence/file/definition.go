package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
)

// DefinitionRepository stores each definition version as a JSON file under root/definitions.
type DefinitionRepository struct {
	root string
	mu   sync.Mutex // Serializes version numbering and publish within this process
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(root string) *DefinitionRepository {
	return &DefinitionRepository{root: root}
}

func (dr *DefinitionRepository) dir() string {
	return path.Join(dr.root, "definitions")
}

// SaveDraft stores the definition as a new draft version of its group.
func (dr *DefinitionRepository) SaveDraft(ctx context.Context, definition *models.Definition) (persistence.DraftID, error) {
	version, err := dr.store(ctx, definition, models.DefinitionStatusDraft)
	if err != nil {
		return "", err
	}

	return persistence.DraftID(version.ID), nil
}

// Publish stores the definition as a new published version and unpublishes older ones.
func (dr *DefinitionRepository) Publish(ctx context.Context, definition *models.Definition) (persistence.PublishedID, error) {
	version, err := dr.store(ctx, definition, models.DefinitionStatusPublished)
	if err != nil {
		return "", err
	}

	return persistence.PublishedID(version.ID), nil
}

func (dr *DefinitionRepository) store(ctx context.Context, definition *models.Definition, status models.DefinitionStatus) (*models.Definition, error) {
	if definition == nil {
		return nil, persistence.ErrDefinitionNil
	}

	dr.mu.Lock()
	defer dr.mu.Unlock()

	existing := make([]*models.Definition, 0)

	if definition.GroupID != "" {
		var err error

		existing, err = dr.ListByGroup(ctx, definition.GroupID)
		if err != nil {
			return nil, err
		}
	}

	latest := 0
	if len(existing) > 0 {
		latest = existing[len(existing)-1].Version
	}

	now := time.Now().UTC()

	version, err := persistence.NewVersion(definition, status, latest, now)
	if err != nil {
		return nil, err
	}

	if status == models.DefinitionStatusPublished {
		for _, previous := range existing {
			if previous.Status != models.DefinitionStatusPublished {
				continue
			}

			previous.Status = models.DefinitionStatusUnpublished
			previous.UpdatedAt = now

			if err := dr.write(previous); err != nil {
				return nil, fmt.Errorf("failed to unpublish definition %s: %w", previous.ID, err)
			}
		}
	}

	if err := dr.write(version); err != nil {
		return nil, err
	}

	return version, nil
}

func (dr *DefinitionRepository) write(definition *models.Definition) error {
	err := os.MkdirAll(dr.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create definitions directory: %w", err)
	}

	data, err := json.MarshalIndent(definition, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal definition %s: %w", definition.ID, err)
	}

	filePath := path.Join(dr.dir(), definition.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// GetByID retrieves a definition version by its ID from the file system.
func (dr *DefinitionRepository) GetByID(_ context.Context, id string) (*models.Definition, error) {
	filePath := filepath.Clean(path.Join(dr.dir(), id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewDefinitionError("GetByID", id, persistence.ErrDefinitionNotFound)
		}

		return nil, fmt.Errorf("failed to fetch definition %s: %w", id, err)
	}

	var definition models.Definition

	err = json.Unmarshal(body, &definition)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition %s: %w", id, err)
	}

	return &definition, nil
}

// ListByGroup returns every version of a group ordered by version number.
func (dr *DefinitionRepository) ListByGroup(ctx context.Context, groupID string) ([]*models.Definition, error) {
	all, err := dr.all(ctx)
	if err != nil {
		return nil, err
	}

	versions := make([]*models.Definition, 0)

	for _, definition := range all {
		if definition.GroupID == groupID {
			versions = append(versions, definition)
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})

	return versions, nil
}

// GetPublished returns the published version of a group.
func (dr *DefinitionRepository) GetPublished(ctx context.Context, groupID string) (*models.Definition, error) {
	versions, err := dr.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	var current *models.Definition

	for _, definition := range versions {
		if definition.Status == models.DefinitionStatusPublished {
			current = definition
		}
	}

	if current == nil {
		return nil, persistence.NewGroupError("GetPublished", groupID, persistence.ErrPublishedDefinitionNotFound)
	}

	return current, nil
}

// Delete removes a definition version by its ID.
func (dr *DefinitionRepository) Delete(_ context.Context, id string) error {
	filePath := path.Join(dr.dir(), id+".json")

	err := os.Remove(filePath)

	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete definition %s: %w", id, err)
	}

	return nil
}

func (dr *DefinitionRepository) all(ctx context.Context) ([]*models.Definition, error) {
	root := os.DirFS(dr.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list definition files: %w", err)
	}

	definitions := make([]*models.Definition, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		definitionID := file[:len(file)-5] // Remove .json extension

		definition, err := dr.GetByID(ctx, definitionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load definition %s: %w", definitionID, err)
		}

		definitions = append(definitions, definition)
	}

	return definitions, nil
}

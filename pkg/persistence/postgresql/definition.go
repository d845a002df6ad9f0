package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/google/uuid"
)

const selectDefinition = `
	SELECT
		id
	  , group_id
	  , parent_id
	  , version
	  , name
	  , description
	  , action_id
	  , branch_id
	  , department_id
	  , execution_mode
	  , stages
	  , status
	  , created_at
	  , updated_at
	  , published_at
	FROM definitions
`

// DefinitionRepository handles definition-related database operations.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

// SaveDraft inserts the definition as a new draft version of its group.
func (r *DefinitionRepository) SaveDraft(ctx context.Context, definition *models.Definition) (persistence.DraftID, error) {
	version, err := r.insert(ctx, definition, models.DefinitionStatusDraft)
	if err != nil {
		return "", err
	}

	return persistence.DraftID(version.ID), nil
}

// Publish inserts the definition as the published version of its group and marks
// older published versions unpublished, in one transaction.
func (r *DefinitionRepository) Publish(ctx context.Context, definition *models.Definition) (persistence.PublishedID, error) {
	version, err := r.insert(ctx, definition, models.DefinitionStatusPublished)
	if err != nil {
		return "", err
	}

	return persistence.PublishedID(version.ID), nil
}

func (r *DefinitionRepository) insert(ctx context.Context, definition *models.Definition, status models.DefinitionStatus) (*models.Definition, error) {
	if definition == nil {
		return nil, persistence.ErrDefinitionNil
	}

	groupID := definition.GroupID
	if groupID == "" {
		groupID = uuid.New().String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Serialize writers of the same group until commit
	_, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock definition group %s: %w", groupID, err)
	}

	var latest int

	err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM definitions WHERE group_id = $1", groupID).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest version: %w", err)
	}

	now := time.Now().UTC()

	grouped := definition.Clone()
	grouped.GroupID = groupID

	version, err := persistence.NewVersion(grouped, status, latest, now)
	if err != nil {
		return nil, err
	}

	if status == models.DefinitionStatusPublished {
		_, err = tx.ExecContext(ctx, `
			UPDATE definitions SET status = $1, updated_at = $2
			WHERE group_id = $3 AND status = $4
		`, models.DefinitionStatusUnpublished, now, groupID, models.DefinitionStatusPublished)
		if err != nil {
			return nil, fmt.Errorf("failed to unpublish previous versions: %w", err)
		}
	}

	stagesJSON, err := json.Marshal(version.Stages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stages: %w", err)
	}

	var parentID sql.NullString
	if version.ParentID != "" {
		parentID = sql.NullString{String: version.ParentID, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO definitions (id, group_id, parent_id, version, name, description,
			action_id, branch_id, department_id, execution_mode, stages, status,
			created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		version.ID,
		version.GroupID,
		parentID,
		version.Version,
		version.Name,
		version.Description,
		version.ActionID,
		version.BranchID,
		version.DepartmentID,
		version.ExecutionMode,
		stagesJSON,
		version.Status,
		version.CreatedAt,
		version.UpdatedAt,
		version.PublishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert definition: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return version, nil
}

// GetByID retrieves a definition version by its ID.
func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.Definition, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, persistence.NewDefinitionError("GetByID", id, persistence.ErrDefinitionNotFound)
	}

	row := r.db.QueryRowContext(ctx, selectDefinition+" WHERE id = $1", id)

	definition, err := r.scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewDefinitionError("GetByID", id, persistence.ErrDefinitionNotFound)
		}

		return nil, fmt.Errorf("failed to scan definition: %w", err)
	}

	return definition, nil
}

// ListByGroup returns every version of a group ordered by version number.
func (r *DefinitionRepository) ListByGroup(ctx context.Context, groupID string) ([]*models.Definition, error) {
	rows, err := r.db.QueryContext(ctx, selectDefinition+" WHERE group_id = $1 ORDER BY version ASC", groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}

	defer func(ctx context.Context, r *DefinitionRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	definitions := make([]*models.Definition, 0)

	for rows.Next() {
		definition, err := r.scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}

		definitions = append(definitions, definition)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}

	return definitions, nil
}

// GetPublished returns the published version of a group.
func (r *DefinitionRepository) GetPublished(ctx context.Context, groupID string) (*models.Definition, error) {
	row := r.db.QueryRowContext(ctx, selectDefinition+" WHERE group_id = $1 AND status = $2", groupID, models.DefinitionStatusPublished)

	definition, err := r.scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewGroupError("GetPublished", groupID, persistence.ErrPublishedDefinitionNotFound)
		}

		return nil, fmt.Errorf("failed to scan definition: %w", err)
	}

	return definition, nil
}

// Delete removes a definition version.
func (r *DefinitionRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}

	_, err := r.db.ExecContext(ctx, "DELETE FROM definitions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete definition %s: %w", id, err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *DefinitionRepository) scanDefinition(row scanner) (*models.Definition, error) {
	var (
		definition  models.Definition
		parentID    sql.NullString
		stagesJSON  []byte
		publishedAt sql.NullTime
	)

	err := row.Scan(
		&definition.ID,
		&definition.GroupID,
		&parentID,
		&definition.Version,
		&definition.Name,
		&definition.Description,
		&definition.ActionID,
		&definition.BranchID,
		&definition.DepartmentID,
		&definition.ExecutionMode,
		&stagesJSON,
		&definition.Status,
		&definition.CreatedAt,
		&definition.UpdatedAt,
		&publishedAt,
	)
	if err != nil {
		return nil, err
	}

	definition.ParentID = parentID.String

	if publishedAt.Valid {
		published := publishedAt.Time.UTC()
		definition.PublishedAt = &published
	}

	definition.CreatedAt = definition.CreatedAt.UTC()
	definition.UpdatedAt = definition.UpdatedAt.UTC()

	err = json.Unmarshal(stagesJSON, &definition.Stages)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal stages: %w", err)
	}

	return &definition, nil
}

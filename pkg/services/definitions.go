package services

import (
	"context"
	"time"

	"github.com/dukex/stageflow/pkg/escalation"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
)

// Definitions serves stored definition versions.
type Definitions struct {
	repository persistence.DefinitionRepository
}

func NewDefinitions(repository persistence.DefinitionRepository) *Definitions {
	return &Definitions{repository: repository}
}

func (d *Definitions) Get(ctx context.Context, id string) (*models.Definition, error) {
	definition, err := d.repository.GetByID(ctx, id)
	if err != nil {
		return nil, newError("GetDefinition", err)
	}

	return definition, nil
}

// ListGroup returns every version of a group ordered by version number. An unknown
// group yields an empty list.
func (d *Definitions) ListGroup(ctx context.Context, groupID string) ([]*models.Definition, error) {
	definitions, err := d.repository.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, newError("ListGroup", err)
	}

	return definitions, nil
}

func (d *Definitions) Published(ctx context.Context, groupID string) (*models.Definition, error) {
	definition, err := d.repository.GetPublished(ctx, groupID)
	if err != nil {
		return nil, newError("GetPublished", err)
	}

	return definition, nil
}

// EscalationPlan returns the escalation deadline of every stage of a stored version,
// assuming each stage is activated at activatedAt.
func (d *Definitions) EscalationPlan(ctx context.Context, id string, activatedAt time.Time) ([]escalation.Decision, error) {
	definition, err := d.repository.GetByID(ctx, id)
	if err != nil {
		return nil, newError("EscalationPlan", err)
	}

	return escalation.Plan(definition, activatedAt), nil
}

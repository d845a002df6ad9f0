// Package builder owns the ordered stage list of a workflow definition under construction.
package builder

import (
	"errors"
	"fmt"

	"github.com/dukex/stageflow/pkg/models"
)

var (
	// ErrStageNotFound is returned when an operation references a stage id that is no longer present.
	ErrStageNotFound = errors.New("stage not found")

	// ErrMinimumStages is returned when removing the last remaining stage.
	ErrMinimumStages = errors.New("definition must retain at least one stage")
)

// StageError wraps stage operation errors with the stage they refer to.
type StageError struct {
	Op      string // Operation name
	StageID string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage %s: %v", e.Op, e.StageID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func (e *StageError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsStageNotFound checks if an error indicates an unknown stage id.
func IsStageNotFound(err error) bool {
	return errors.Is(err, ErrStageNotFound)
}

// IsMinimumStagesViolation checks if an error indicates a refused removal of the last stage.
func IsMinimumStagesViolation(err error) bool {
	return errors.Is(err, ErrMinimumStages)
}

// Builder mutates a definition's stage sequence while keeping it non-empty and ordered.
//
// Every stage operation returns a fresh copy of the sequence; callers never hold
// slices that alias the builder's state. A Builder is not safe for concurrent use.
type Builder struct {
	definition *models.Definition
}

// New returns a builder for a fresh rigid definition holding a single empty stage.
func New() *Builder {
	return &Builder{
		definition: &models.Definition{
			ExecutionMode: models.ExecutionModeRigid,
			Stages:        []models.Stage{models.NewStage()},
			Status:        models.DefinitionStatusDraft,
		},
	}
}

// NewFrom returns a builder seeded with a copy of an existing definition, so that
// edits to a stored definition round-trip into a new draft version of the same group.
// A definition without stages gets one empty stage. Stages with a missing or repeated
// id get a fresh one, and every stage is normalized (see models.Stage.Normalize).
func NewFrom(definition *models.Definition) *Builder {
	cloned := definition.Clone()
	if cloned == nil {
		return New()
	}

	if cloned.ID != "" {
		cloned.ParentID = cloned.ID
		cloned.ID = ""
	}

	cloned.Status = models.DefinitionStatusDraft
	cloned.PublishedAt = nil

	if len(cloned.Stages) == 0 {
		cloned.Stages = []models.Stage{models.NewStage()}
	}

	if cloned.ExecutionMode == "" {
		cloned.ExecutionMode = models.ExecutionModeRigid
	}

	seen := make(map[string]bool, len(cloned.Stages))

	for i := range cloned.Stages {
		stage := &cloned.Stages[i]

		if stage.ID == "" || seen[stage.ID] {
			stage.ID = models.NewStage().ID
		}

		seen[stage.ID] = true

		stage.Normalize()
	}

	return &Builder{definition: cloned}
}

// Definition returns a deep copy of the definition as built so far.
func (b *Builder) Definition() *models.Definition {
	return b.definition.Clone()
}

// Stages returns a copy of the current stage sequence.
func (b *Builder) Stages() []models.Stage {
	return models.CloneStages(b.definition.Stages)
}

// Stage returns a copy of the stage with the given id.
func (b *Builder) Stage(id string) (models.Stage, error) {
	index := b.definition.StageIndex(id)
	if index < 0 {
		return models.Stage{}, &StageError{Op: "Stage", StageID: id, Err: ErrStageNotFound}
	}

	return b.definition.Stages[index].Clone(), nil
}

// BasicInfo returns the basic info fields.
func (b *Builder) BasicInfo() models.BasicInfo {
	return b.definition.BasicInfo
}

// SetBasicInfo replaces the basic info fields. Validation happens when the wizard advances.
func (b *Builder) SetBasicInfo(info models.BasicInfo) {
	b.definition.BasicInfo = info
}

// SetGroup links the definition to a version group.
func (b *Builder) SetGroup(groupID string) {
	b.definition.GroupID = groupID
}

// SetMode tags the definition rigid or flexible.
func (b *Builder) SetMode(mode models.ExecutionMode) error {
	if !mode.Valid() {
		return models.ErrInvalidExecutionMode
	}

	b.definition.ExecutionMode = mode

	return nil
}

// Append adds a new empty stage at the end of the sequence.
func (b *Builder) Append() []models.Stage {
	b.definition.Stages = append(b.definition.Stages, models.NewStage())

	return b.Stages()
}

// MoveUp swaps the stage with its predecessor. Moving the first stage is a no-op.
func (b *Builder) MoveUp(id string) ([]models.Stage, error) {
	index := b.definition.StageIndex(id)
	if index < 0 {
		return nil, &StageError{Op: "MoveUp", StageID: id, Err: ErrStageNotFound}
	}

	if index > 0 {
		b.swap(index, index-1)
	}

	return b.Stages(), nil
}

// MoveDown swaps the stage with its successor. Moving the last stage is a no-op.
func (b *Builder) MoveDown(id string) ([]models.Stage, error) {
	index := b.definition.StageIndex(id)
	if index < 0 {
		return nil, &StageError{Op: "MoveDown", StageID: id, Err: ErrStageNotFound}
	}

	if index < len(b.definition.Stages)-1 {
		b.swap(index, index+1)
	}

	return b.Stages(), nil
}

// Remove deletes the stage and closes the gap. Removing the only stage is refused
// with ErrMinimumStages and leaves the sequence unchanged.
func (b *Builder) Remove(id string) ([]models.Stage, error) {
	index := b.definition.StageIndex(id)
	if index < 0 {
		return nil, &StageError{Op: "Remove", StageID: id, Err: ErrStageNotFound}
	}

	if len(b.definition.Stages) == 1 {
		return nil, &StageError{Op: "Remove", StageID: id, Err: ErrMinimumStages}
	}

	stages := make([]models.Stage, 0, len(b.definition.Stages)-1)
	stages = append(stages, b.definition.Stages[:index]...)
	stages = append(stages, b.definition.Stages[index+1:]...)
	b.definition.Stages = stages

	return b.Stages(), nil
}

// Replace overwrites the stage in place. The stage keeps its position and id
// regardless of the id carried by line.
func (b *Builder) Replace(id string, line models.Stage) ([]models.Stage, error) {
	index := b.definition.StageIndex(id)
	if index < 0 {
		return nil, &StageError{Op: "Replace", StageID: id, Err: ErrStageNotFound}
	}

	replacement := line.Clone()
	replacement.ID = id
	b.definition.Stages[index] = replacement

	return b.Stages(), nil
}

// Update applies fn to a copy of the stage and stores the result with Replace.
// If fn returns an error the stage is left untouched.
func (b *Builder) Update(id string, fn func(*models.Stage) error) ([]models.Stage, error) {
	stage, err := b.Stage(id)
	if err != nil {
		return nil, err
	}

	if err := fn(&stage); err != nil {
		return nil, err
	}

	return b.Replace(id, stage)
}

// ValidateForPublish returns, in sequence order, the ids of stages that are not complete.
// An empty result means the definition may be published.
func (b *Builder) ValidateForPublish() []string {
	return b.definition.IncompleteStageIDs()
}

func (b *Builder) swap(i, j int) {
	b.definition.Stages[i], b.definition.Stages[j] = b.definition.Stages[j], b.definition.Stages[i]
}

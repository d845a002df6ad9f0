// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/stageflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestStage creates an empty Stage that can be customized with overrides.
func CreateTestStage(overrides ...func(*models.Stage)) models.Stage {
	stage := models.NewStage()

	for _, override := range overrides {
		override(&stage)
	}

	return stage
}

// CreateCompleteStage creates a publishable approval stage escalating to u1 after 20 minutes.
func CreateCompleteStage(overrides ...func(*models.Stage)) models.Stage {
	stage := models.NewStage()
	stage.Type = models.StageTypeApproval
	stage.Escalation.SetEscalateTo(models.User("u1", "Ada Obi"))
	_ = stage.Escalation.SetTimeoutFromPreset(20)
	stage.Assignment.Assign(models.User("u2", "Grace Eze"))

	for _, override := range overrides {
		override(&stage)
	}

	return stage
}

// WithStageType sets the stage type.
func WithStageType(stageType models.StageType) func(*models.Stage) {
	return func(s *models.Stage) {
		s.Type = stageType
	}
}

// WithAssignees replaces the stage assignment.
func WithAssignees(actors ...models.ActorRef) func(*models.Stage) {
	return func(s *models.Stage) {
		s.Assignment = models.AssignmentSet{Users: []models.ActorRef{}, Roles: []models.ActorRef{}}
		s.Assignment.Assign(actors...)
	}
}

// WithoutAssignees empties the stage assignment.
func WithoutAssignees() func(*models.Stage) {
	return WithAssignees()
}

// CreateTestDefinition creates a draft Definition with one complete stage in a fresh group.
func CreateTestDefinition(overrides ...func(*models.Definition)) *models.Definition {
	definition := &models.Definition{
		GroupID: uuid.New().String(),
		BasicInfo: models.BasicInfo{
			Name:         "Large transfer review",
			Description:  "Outgoing transfers above the branch limit",
			ActionID:     "act-transfer",
			BranchID:     "br-lagos",
			DepartmentID: "dep-treasury",
		},
		ExecutionMode: models.ExecutionModeRigid,
		Stages:        []models.Stage{CreateCompleteStage()},
		Status:        models.DefinitionStatusDraft,
	}

	for _, override := range overrides {
		override(definition)
	}

	return definition
}

// WithGroup sets the definition group.
func WithGroup(groupID string) func(*models.Definition) {
	return func(d *models.Definition) {
		d.GroupID = groupID
	}
}

// WithName sets the definition name.
func WithName(name string) func(*models.Definition) {
	return func(d *models.Definition) {
		d.Name = name
	}
}

// WithStages replaces the stage sequence.
func WithStages(stages ...models.Stage) func(*models.Definition) {
	return func(d *models.Definition) {
		d.Stages = stages
	}
}

// WithMode sets the execution mode.
func WithMode(mode models.ExecutionMode) func(*models.Definition) {
	return func(d *models.Definition) {
		d.ExecutionMode = mode
	}
}

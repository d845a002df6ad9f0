package builder

import (
	"errors"
	"testing"
	"time"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageIDs(stages []models.Stage) []string {
	ids := make([]string, len(stages))
	for i, stage := range stages {
		ids[i] = stage.ID
	}

	return ids
}

func builderWithStages(t *testing.T, n int) (*Builder, []string) {
	t.Helper()

	b := New()
	for i := 1; i < n; i++ {
		b.Append()
	}

	ids := stageIDs(b.Stages())
	require.Len(t, ids, n)

	return b, ids
}

func TestNew_StartsWithOneEmptyStage(t *testing.T) {
	b := New()

	stages := b.Stages()
	require.Len(t, stages, 1)
	assert.NotEmpty(t, stages[0].ID)
	assert.False(t, stages[0].Complete())
	assert.Equal(t, models.ExecutionModeRigid, b.Definition().ExecutionMode)
	assert.Equal(t, models.DefinitionStatusDraft, b.Definition().Status)
}

func TestBuilder_Append(t *testing.T) {
	b, ids := builderWithStages(t, 2)

	stages := b.Append()

	require.Len(t, stages, 3)
	assert.Equal(t, ids, stageIDs(stages)[:2], "existing stages keep their order")
	assert.NotContains(t, ids, stages[2].ID)
}

func TestBuilder_MoveUpMoveDown(t *testing.T) {
	b, ids := builderWithStages(t, 3)

	stages, err := b.MoveUp(ids[2])
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[2], ids[1]}, stageIDs(stages))

	stages, err = b.MoveDown(ids[0])
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2], ids[0], ids[1]}, stageIDs(stages))
}

func TestBuilder_MoveAtBoundaryIsNoop(t *testing.T) {
	b, ids := builderWithStages(t, 3)

	for range 3 {
		stages, err := b.MoveUp(ids[0])
		require.NoError(t, err)
		assert.Equal(t, ids, stageIDs(stages))

		stages, err = b.MoveDown(ids[2])
		require.NoError(t, err)
		assert.Equal(t, ids, stageIDs(stages))
	}
}

func TestBuilder_MoveUpThenDownRoundTrips(t *testing.T) {
	for position := range 4 {
		b, ids := builderWithStages(t, 4)
		id := ids[position]

		up, err := b.MoveUp(id)
		require.NoError(t, err)

		if position == 0 {
			assert.Equal(t, ids, stageIDs(up), "MoveUp at the top is a no-op")

			continue
		}

		after, err := b.MoveDown(id)
		require.NoError(t, err)
		assert.Equal(t, ids, stageIDs(after), "position %d", position)
	}
}

func TestBuilder_MoveDownThenUpRoundTripsForLastStage(t *testing.T) {
	b, ids := builderWithStages(t, 2)

	_, err := b.MoveDown(ids[1])
	require.NoError(t, err)

	stages, err := b.MoveUp(ids[1])
	require.NoError(t, err)

	// MoveDown at the end was a no-op; MoveUp then swapped it upward.
	assert.Equal(t, []string{ids[1], ids[0]}, stageIDs(stages))

	_, err = b.MoveDown(ids[1])
	require.NoError(t, err)
	assert.Equal(t, ids, stageIDs(b.Stages()))
}

func TestBuilder_SingleStageMoveIsNoop(t *testing.T) {
	b, ids := builderWithStages(t, 1)

	stages, err := b.MoveUp(ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids, stageIDs(stages))

	stages, err = b.MoveDown(ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids, stageIDs(stages))
}

func TestBuilder_Remove(t *testing.T) {
	b, ids := builderWithStages(t, 3)

	stages, err := b.Remove(ids[1])
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[2]}, stageIDs(stages))
}

func TestBuilder_RemoveLastStageIsRefused(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testing.T, *Builder, string)
	}{
		{name: "empty stage", setup: func(*testing.T, *Builder, string) {}},
		{
			name: "complete stage",
			setup: func(t *testing.T, b *Builder, id string) {
				_, err := b.Update(id, func(s *models.Stage) error {
					s.Escalation.SetEscalateTo(models.User("u1", ""))
					s.Assignment.Assign(models.User("u2", ""))
					s.OpenEscalationEditor()

					if err := s.Escalation.SetTimeoutFromPreset(10); err != nil {
						return err
					}

					return s.SetType(models.StageTypeVerification)
				})
				require.NoError(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ids := builderWithStages(t, 1)
			tt.setup(t, b, ids[0])
			before := b.Stages()

			stages, err := b.Remove(ids[0])

			require.Error(t, err)
			assert.True(t, IsMinimumStagesViolation(err))
			assert.Nil(t, stages)
			assert.Equal(t, before, b.Stages(), "stage list must be unchanged")
		})
	}
}

func TestBuilder_RemoveDownToOneThenRefuse(t *testing.T) {
	b, ids := builderWithStages(t, 2)

	_, err := b.Remove(ids[0])
	require.NoError(t, err)

	_, err = b.Remove(ids[1])
	require.ErrorIs(t, err, ErrMinimumStages)
	assert.Equal(t, []string{ids[1]}, stageIDs(b.Stages()))
}

func TestBuilder_UnknownStage(t *testing.T) {
	b, ids := builderWithStages(t, 2)

	operations := map[string]func() error{
		"MoveUp":   func() error { _, err := b.MoveUp("missing"); return err },
		"MoveDown": func() error { _, err := b.MoveDown("missing"); return err },
		"Remove":   func() error { _, err := b.Remove("missing"); return err },
		"Replace":  func() error { _, err := b.Replace("missing", models.NewStage()); return err },
		"Stage":    func() error { _, err := b.Stage("missing"); return err },
	}

	for name, operation := range operations {
		t.Run(name, func(t *testing.T) {
			err := operation()
			require.Error(t, err)
			assert.True(t, IsStageNotFound(err))

			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, "missing", stageErr.StageID)
		})
	}

	assert.Equal(t, ids, stageIDs(b.Stages()))
}

func TestBuilder_RemovedIDIsNotFound(t *testing.T) {
	b, ids := builderWithStages(t, 2)

	_, err := b.Remove(ids[0])
	require.NoError(t, err)

	_, err = b.MoveUp(ids[0])
	assert.ErrorIs(t, err, ErrStageNotFound)
}

func TestBuilder_ReplaceKeepsPositionAndID(t *testing.T) {
	b, ids := builderWithStages(t, 3)

	line := models.NewStage()
	require.NoError(t, line.SetType(models.StageTypeDocumentation))

	stages, err := b.Replace(ids[1], line)
	require.NoError(t, err)

	assert.Equal(t, ids, stageIDs(stages))
	assert.Equal(t, models.StageTypeDocumentation, stages[1].Type)
}

func TestBuilder_UpdateErrorLeavesStageUntouched(t *testing.T) {
	b, ids := builderWithStages(t, 1)
	sentinel := errors.New("boom")

	_, err := b.Update(ids[0], func(s *models.Stage) error {
		s.Assignment.Assign(models.User("u1", ""))

		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	stage, err := b.Stage(ids[0])
	require.NoError(t, err)
	assert.Zero(t, stage.Assignment.Size())
}

func TestBuilder_ReturnedStagesDoNotAlias(t *testing.T) {
	b, ids := builderWithStages(t, 2)

	stages := b.Stages()
	stages[0].Assignment.Assign(models.User("u1", ""))
	stages[0], stages[1] = stages[1], stages[0]

	assert.Equal(t, ids, stageIDs(b.Stages()))

	stage, err := b.Stage(ids[0])
	require.NoError(t, err)
	assert.Zero(t, stage.Assignment.Size())

	definition := b.Definition()
	definition.Stages = nil
	assert.Len(t, b.Stages(), 2)
}

func TestBuilder_EditsAreStageLocal(t *testing.T) {
	b, ids := builderWithStages(t, 2)

	_, err := b.Update(ids[0], func(s *models.Stage) error {
		s.Escalation.SetEscalateTo(models.User("u1", ""))
		s.Assignment.Assign(models.User("u2", ""))
		s.Escalation.SetTimeoutFromCustom("00:20:00")

		return s.SetType(models.StageTypeApproval)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1]}, b.ValidateForPublish())

	steps := []func(*models.Stage) error{
		func(s *models.Stage) error { return s.SetType(models.StageTypeReview) },
		func(s *models.Stage) error { s.Escalation.SetEscalateTo(models.Role("r1", "", 2)); return nil },
		func(s *models.Stage) error { return s.Escalation.SetTimeoutFromPreset(60) },
		func(s *models.Stage) error { s.Assignment.Assign(models.Role("r2", "", 1)); return nil },
	}

	for i, step := range steps {
		_, err := b.Update(ids[1], step)
		require.NoError(t, err)

		first, err := b.Stage(ids[0])
		require.NoError(t, err)
		assert.True(t, first.Complete(), "step %d must not affect the first stage", i)
	}

	assert.Empty(t, b.ValidateForPublish())
}

func TestBuilder_ValidateForPublishOrder(t *testing.T) {
	b, ids := builderWithStages(t, 3)

	incomplete := b.ValidateForPublish()
	assert.Equal(t, ids, incomplete)

	_, err := b.MoveDown(ids[0])
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1], ids[0], ids[2]}, b.ValidateForPublish())
}

func TestBuilder_SetMode(t *testing.T) {
	b := New()

	require.NoError(t, b.SetMode(models.ExecutionModeFlexible))
	assert.Equal(t, models.ExecutionModeFlexible, b.Definition().ExecutionMode)

	require.ErrorIs(t, b.SetMode("parallel"), models.ErrInvalidExecutionMode)
	assert.Equal(t, models.ExecutionModeFlexible, b.Definition().ExecutionMode)
}

func TestNewFrom_RoundTripsDefinition(t *testing.T) {
	original := New()
	original.Append()
	original.SetBasicInfo(models.BasicInfo{Name: "KYC escalation", ActionID: "a1", BranchID: "b1", DepartmentID: "d1"})
	require.NoError(t, original.SetMode(models.ExecutionModeFlexible))

	stored := original.Definition()
	stored.ID = "def-1"
	stored.GroupID = "group-1"

	edited := NewFrom(stored)
	derived := edited.Definition()
	assert.Empty(t, derived.ID)
	assert.Equal(t, "def-1", derived.ParentID)
	assert.Equal(t, "group-1", derived.GroupID)
	assert.Equal(t, stored.BasicInfo, derived.BasicInfo)
	assert.Equal(t, stored.Stages, derived.Stages)
	assert.Equal(t, models.ExecutionModeFlexible, derived.ExecutionMode)

	edited.Append()
	assert.Len(t, stored.Stages, 2, "editing must not reach the stored definition")
}

func TestNewFrom_ResetsPublishedState(t *testing.T) {
	stored := New().Definition()
	stored.ID = "def-1"
	stored.Status = models.DefinitionStatusPublished
	now := time.Now()
	stored.PublishedAt = &now

	derived := NewFrom(stored).Definition()

	assert.Equal(t, models.DefinitionStatusDraft, derived.Status)
	assert.Nil(t, derived.PublishedAt)
	assert.Equal(t, models.DefinitionStatusPublished, stored.Status)
}

func TestNewFrom_FillsMissingParts(t *testing.T) {
	b := NewFrom(&models.Definition{Stages: []models.Stage{{Type: models.StageTypeReview}}})

	stages := b.Stages()
	require.Len(t, stages, 1)
	assert.NotEmpty(t, stages[0].ID)
	assert.Equal(t, models.ExecutionModeRigid, b.Definition().ExecutionMode)

	empty := NewFrom(&models.Definition{})
	assert.Len(t, empty.Stages(), 1)

	assert.Len(t, NewFrom(nil).Stages(), 1)
}

func TestNewFrom_ReassignsRepeatedStageIDs(t *testing.T) {
	b := NewFrom(&models.Definition{Stages: []models.Stage{
		{ID: "dup", Type: models.StageTypeReview},
		{ID: "dup", Type: models.StageTypeApproval},
		{ID: "other"},
	}})

	ids := stageIDs(b.Stages())
	require.Len(t, ids, 3)
	assert.Equal(t, "dup", ids[0])
	assert.NotEqual(t, "dup", ids[1])
	assert.Equal(t, "other", ids[2])

	stages, err := b.Remove("dup")
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1], "other"}, stageIDs(stages))
	assert.Equal(t, models.StageTypeApproval, stages[0].Type)
}

func TestNewFrom_NormalizesStages(t *testing.T) {
	grace := models.User("u1", "Grace")

	b := NewFrom(&models.Definition{Stages: []models.Stage{{
		Type: models.StageTypeReview,
		Escalation: models.EscalationProtocol{
			EscalateTo:     &grace,
			Preset:         10,
			Custom:         "00:45:00",
			TimeoutMinutes: 45,
		},
		Assignment: models.AssignmentSet{
			Users: []models.ActorRef{grace, grace},
			Roles: []models.ActorRef{models.User("u2", "Tunde")},
		},
	}}})

	stage := b.Stages()[0]
	assert.Equal(t, 10, stage.Escalation.TimeoutMinutes)
	assert.Empty(t, stage.Escalation.Custom)
	assert.Equal(t, []models.ActorRef{grace, models.User("u2", "Tunde")}, stage.Assignment.Users)
	assert.Empty(t, stage.Assignment.Roles)
}

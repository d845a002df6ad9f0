package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Escalation Protocol Tests

func TestParseCustomTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  int
	}{
		{input: "00:20:00", want: 20},
		{input: "1:05:30", want: 65},
		{input: "00:00:10", want: 0},
		{input: "00:00:59", want: 0},
		{input: "00:01:59", want: 1},
		{input: "2", want: 120},
		{input: "0:45", want: 45},
		{input: "", want: 0},
		{input: "ab:10:00", want: 10},
		{input: "1:xx:120", want: 62},
		{input: "-1:10:00", want: 10},
		{input: "9223372036854775807:0:0", want: 0},
		{input: "0:9223372036854775807:600", want: 0},
		{input: "35791394:0:0", want: 2147483640},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseCustomTimeout(tt.input))
		})
	}
}

func TestEscalationProtocol_PresetAndCustomAreLastWriteWins(t *testing.T) {
	var protocol EscalationProtocol

	require.NoError(t, protocol.SetTimeoutFromPreset(30))
	assert.Equal(t, 30, protocol.TimeoutMinutes)
	assert.Equal(t, 30, protocol.Preset)

	protocol.SetTimeoutFromCustom("00:20:00")
	assert.Equal(t, 20, protocol.TimeoutMinutes)
	assert.Zero(t, protocol.Preset)
	assert.Equal(t, "00:20:00", protocol.Custom)

	require.NoError(t, protocol.SetTimeoutFromPreset(5))
	assert.Equal(t, 5, protocol.TimeoutMinutes)
	assert.Empty(t, protocol.Custom)
}

func TestEscalationProtocol_Normalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		protocol EscalationProtocol
		want     EscalationProtocol
	}{
		{
			name:     "preset wins over custom",
			protocol: EscalationProtocol{Preset: 30, Custom: "00:20:00", TimeoutMinutes: 20},
			want:     EscalationProtocol{Preset: 30, TimeoutMinutes: 30},
		},
		{
			name:     "custom re-derives timeout",
			protocol: EscalationProtocol{Custom: "1:05:30", TimeoutMinutes: 5},
			want:     EscalationProtocol{Custom: "1:05:30", TimeoutMinutes: 65},
		},
		{
			name:     "unknown preset falls back to custom",
			protocol: EscalationProtocol{Preset: 15, Custom: "00:10:00"},
			want:     EscalationProtocol{Custom: "00:10:00", TimeoutMinutes: 10},
		},
		{
			name:     "unknown preset alone is dropped",
			protocol: EscalationProtocol{Preset: 15, TimeoutMinutes: 15},
			want:     EscalationProtocol{TimeoutMinutes: 15},
		},
		{
			name:     "negative timeout is unset",
			protocol: EscalationProtocol{TimeoutMinutes: -5},
			want:     EscalationProtocol{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			protocol := tt.protocol
			protocol.Normalize()
			assert.Equal(t, tt.want, protocol)
		})
	}
}

func TestAssignmentSet_Normalize(t *testing.T) {
	set := AssignmentSet{
		Users: []ActorRef{User("u1", "Ada"), User("u1", "Ada"), Role("r1", "Compliance", 3)},
		Roles: []ActorRef{Role("r1", "Compliance", 3), User("u2", "Grace"), {Kind: "team", ID: "t1"}},
	}

	set.Normalize()

	assert.Equal(t, []ActorRef{User("u1", "Ada"), User("u2", "Grace")}, set.Users)
	assert.Equal(t, []ActorRef{Role("r1", "Compliance", 3)}, set.Roles)
	assert.Equal(t, 3, set.Size())

	var empty AssignmentSet

	empty.Normalize()
	assert.NotNil(t, empty.Users)
	assert.NotNil(t, empty.Roles)
	assert.Zero(t, empty.Size())
}

func TestEscalationProtocol_InvalidPreset(t *testing.T) {
	protocol := EscalationProtocol{}
	require.NoError(t, protocol.SetTimeoutFromPreset(10))

	err := protocol.SetTimeoutFromPreset(15)
	require.ErrorIs(t, err, ErrInvalidPreset)
	assert.Equal(t, 10, protocol.TimeoutMinutes, "rejected preset must not change the protocol")
}

func TestEscalationProtocol_Complete(t *testing.T) {
	var protocol EscalationProtocol
	assert.False(t, protocol.Complete())

	protocol.SetEscalateTo(User("u1", "Ada"))
	assert.False(t, protocol.Complete(), "timeout still unset")

	protocol.SetTimeoutFromCustom("00:00:10")
	assert.False(t, protocol.Complete(), "sub-minute custom timeout counts as unset")

	protocol.SetTimeoutFromCustom("00:20:00")
	assert.True(t, protocol.Complete())

	protocol.Clear()
	assert.Equal(t, EscalationProtocol{}, protocol)
}

func TestEscalationProtocol_CloneDetachesTarget(t *testing.T) {
	var protocol EscalationProtocol
	protocol.SetEscalateTo(User("u1", "Ada"))

	cloned := protocol.Clone()
	cloned.EscalateTo.ID = "u2"

	assert.Equal(t, "u1", protocol.EscalateTo.ID)
}

// Assignment Set Tests

func TestAssignmentSet_AssignIsIdempotent(t *testing.T) {
	actors := []ActorRef{User("u1", "Ada"), Role("r1", "Compliance", 4), User("u2", "Grace")}

	var once AssignmentSet
	once.Assign(actors...)

	var twice AssignmentSet
	twice.Assign(actors...)
	twice.Assign(actors...)

	assert.Equal(t, once.Members(), twice.Members())
	assert.Equal(t, 3, twice.Size())
}

func TestAssignmentSet_SameUserTwiceKeepsSize(t *testing.T) {
	var set AssignmentSet

	set.Assign(User("u1", "Ada"))
	set.Assign(User("u1", "Ada (renamed)"))

	assert.Equal(t, 1, set.Size())
	assert.Equal(t, "Ada", set.Users[0].DisplayName, "first reference wins")
}

func TestAssignmentSet_UserAndRoleWithSameIDAreDistinct(t *testing.T) {
	var set AssignmentSet

	set.Assign(User("x", "User X"), Role("x", "Role X", 2))

	assert.Equal(t, 2, set.Size())
	assert.Len(t, set.Users, 1)
	assert.Len(t, set.Roles, 1)
}

func TestAssignmentSet_Unassign(t *testing.T) {
	var set AssignmentSet
	set.Assign(User("u1", ""), User("u2", ""), Role("r1", "", 0))

	set.Unassign(User("u1", ""))
	assert.Equal(t, []ActorRef{User("u2", ""), Role("r1", "", 0)}, set.Members())

	set.Unassign(User("missing", ""))
	set.Unassign(Role("u2", "", 0))
	assert.Equal(t, 2, set.Size(), "removing an absent reference is a no-op")
}

func TestAssignmentSet_PreservesInsertionOrder(t *testing.T) {
	var set AssignmentSet
	set.Assign(User("c", ""), User("a", ""), User("b", ""))
	set.Assign(User("a", ""), User("d", ""))

	ids := make([]string, 0, set.Size())
	for _, member := range set.Members() {
		ids = append(ids, member.ID)
	}

	assert.Equal(t, []string{"c", "a", "b", "d"}, ids)
}

// Stage Tests

func completeStage() Stage {
	stage := NewStage()
	_ = stage.SetType(StageTypeApproval)
	stage.Escalation.SetEscalateTo(User("u1", "Ada"))
	_ = stage.Escalation.SetTimeoutFromPreset(20)
	stage.Assignment.Assign(User("u2", "Grace"))

	return stage
}

func TestNewStage_HasFreshID(t *testing.T) {
	first := NewStage()
	second := NewStage()

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.Complete())
	assert.Equal(t, []string{StageFieldType, StageFieldEscalateTo, StageFieldTimeout, StageFieldAssignment}, first.MissingFields())
}

func TestStage_SetType(t *testing.T) {
	stage := NewStage()

	require.NoError(t, stage.SetType(StageTypeReview))
	assert.Equal(t, StageTypeReview, stage.Type)

	require.ErrorIs(t, stage.SetType("signoff"), ErrInvalidStageType)
	assert.Equal(t, StageTypeReview, stage.Type)
}

func TestStage_EscalationEditorFlag(t *testing.T) {
	stage := completeStage()

	stage.OpenEscalationEditor()
	assert.True(t, stage.Expanded)
	assert.True(t, stage.Complete(), "editor state does not affect completeness")

	stage.CloseEscalationEditor()
	assert.False(t, stage.Expanded)
}

func TestStage_CompleteRequiresEveryPart(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Stage)
		missing string
	}{
		{name: "type unset", mutate: func(s *Stage) { s.Type = StageTypeUnset }, missing: StageFieldType},
		{name: "no escalation target", mutate: func(s *Stage) { s.Escalation.EscalateTo = nil }, missing: StageFieldEscalateTo},
		{name: "zero timeout", mutate: func(s *Stage) { s.Escalation.SetTimeoutFromCustom("0:0:30") }, missing: StageFieldTimeout},
		{name: "no assignees", mutate: func(s *Stage) { s.Assignment.Unassign(User("u2", "")) }, missing: StageFieldAssignment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := completeStage()
			require.True(t, stage.Complete())

			tt.mutate(&stage)

			assert.False(t, stage.Complete())
			assert.Equal(t, []string{tt.missing}, stage.MissingFields())
		})
	}
}

func TestStage_RoleAssignmentSatisfiesCompleteness(t *testing.T) {
	stage := completeStage()
	stage.Assignment.Unassign(User("u2", ""))
	stage.Assignment.Assign(Role("r1", "Compliance", 3))

	assert.True(t, stage.Complete())
}

func TestCloneStages_NoAliasing(t *testing.T) {
	stages := []Stage{completeStage()}

	cloned := CloneStages(stages)
	cloned[0].Assignment.Assign(User("u9", ""))
	cloned[0].Escalation.EscalateTo.ID = "other"

	assert.Equal(t, 1, stages[0].Assignment.Size())
	assert.Equal(t, "u1", stages[0].Escalation.EscalateTo.ID)
}

// Definition Tests

func TestDefinition_IncompleteStageIDs(t *testing.T) {
	complete := completeStage()
	incomplete := NewStage()
	another := NewStage()

	definition := &Definition{Stages: []Stage{incomplete, complete, another}}

	assert.Equal(t, []string{incomplete.ID, another.ID}, definition.IncompleteStageIDs())
	assert.Equal(t, 1, definition.StageIndex(complete.ID))
	assert.Equal(t, -1, definition.StageIndex("missing"))
}

func TestDefinition_JSONFlattensBasicInfo(t *testing.T) {
	definition := Definition{
		ID:            "def-1",
		BasicInfo:     BasicInfo{Name: "Large transfer review", ActionID: "act-1"},
		ExecutionMode: ExecutionModeRigid,
		Stages:        []Stage{completeStage()},
		Status:        DefinitionStatusDraft,
	}

	data, err := json.Marshal(definition)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "Large transfer review", decoded["name"])
	assert.Equal(t, "act-1", decoded["action_id"])
	assert.Equal(t, "rigid", decoded["execution_mode"])
}

func TestExecutionMode_Valid(t *testing.T) {
	assert.True(t, ExecutionModeRigid.Valid())
	assert.True(t, ExecutionModeFlexible.Valid())
	assert.False(t, ExecutionMode("parallel").Valid())
	assert.False(t, ExecutionMode("").Valid())
}

// Validation Tests

func TestNewValidator_MaxWords(t *testing.T) {
	validate := NewValidator()

	info := BasicInfo{Name: "n", ActionID: "a", BranchID: "b", DepartmentID: "d"}

	info.Description = words(24)
	assert.NoError(t, validate.Struct(info))

	info.Description = words(25)
	assert.Error(t, validate.Struct(info))
}

func words(n int) string {
	text := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			text += " "
		}

		text += "word"
	}

	return text
}

// Schema Tests

func TestValidateDocument(t *testing.T) {
	valid := map[string]any{
		"name":           "Imported",
		"execution_mode": "flexible",
		"stages": []any{
			map[string]any{
				"type": "review",
				"escalation": map[string]any{
					"escalate_to":     map[string]any{"kind": "user", "id": "u1"},
					"timeout_minutes": 10,
				},
				"assignment": map[string]any{
					"users": []any{map[string]any{"kind": "user", "id": "u2"}},
					"roles": []any{},
				},
			},
		},
	}
	require.NoError(t, ValidateDocument(valid))

	noStages := map[string]any{"name": "Imported", "stages": []any{}}
	require.ErrorIs(t, ValidateDocument(noStages), ErrInvalidDocument)

	badMode := map[string]any{"name": "Imported", "execution_mode": "parallel", "stages": []any{map[string]any{}}}
	require.ErrorIs(t, ValidateDocument(badMode), ErrInvalidDocument)

	badActor := map[string]any{
		"name": "Imported",
		"stages": []any{map[string]any{
			"escalation": map[string]any{"escalate_to": map[string]any{"kind": "team", "id": "t1"}},
		}},
	}
	require.ErrorIs(t, ValidateDocument(badActor), ErrInvalidDocument)
}

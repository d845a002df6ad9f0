package models

import (
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidStageType is returned when a stage type is not one of the known types.
var ErrInvalidStageType = errors.New("invalid stage type")

// StageType is the kind of work a stage represents. The zero value means unset.
type StageType string

const (
	StageTypeUnset         StageType = ""
	StageTypeReview        StageType = "review"
	StageTypeApproval      StageType = "approval"
	StageTypeDocumentation StageType = "documentation"
	StageTypeVerification  StageType = "verification"
)

// StageTypes lists the selectable stage types in display order.
var StageTypes = []StageType{
	StageTypeReview,
	StageTypeApproval,
	StageTypeDocumentation,
	StageTypeVerification,
}

// Valid reports whether t is one of StageTypes.
func (t StageType) Valid() bool {
	switch t {
	case StageTypeReview, StageTypeApproval, StageTypeDocumentation, StageTypeVerification:
		return true
	default:
		return false
	}
}

// Fields reported by Stage.MissingFields.
const (
	StageFieldType       = "type"
	StageFieldEscalateTo = "escalate_to"
	StageFieldTimeout    = "timeout"
	StageFieldAssignment = "assignment"
)

// Stage is one workflow line of a definition.
type Stage struct {
	ID         string             `json:"id"`
	Type       StageType          `json:"type"`
	Escalation EscalationProtocol `json:"escalation"`
	Assignment AssignmentSet      `json:"assignment"`
	Expanded   bool               `json:"expanded"` // Escalation editor open in the console
}

// NewStage returns an empty stage with a fresh identifier.
func NewStage() Stage {
	return Stage{
		ID: uuid.New().String(),
		Assignment: AssignmentSet{
			Users: []ActorRef{},
			Roles: []ActorRef{},
		},
	}
}

// SetType sets the stage type.
func (s *Stage) SetType(t StageType) error {
	if !t.Valid() {
		return ErrInvalidStageType
	}

	s.Type = t

	return nil
}

func (s *Stage) OpenEscalationEditor() {
	s.Expanded = true
}

func (s *Stage) CloseEscalationEditor() {
	s.Expanded = false
}

// Complete reports whether the stage can be published.
func (s Stage) Complete() bool {
	return len(s.MissingFields()) == 0
}

// MissingFields lists what keeps the stage from being complete.
func (s Stage) MissingFields() []string {
	var missing []string

	if !s.Type.Valid() {
		missing = append(missing, StageFieldType)
	}

	if s.Escalation.EscalateTo == nil {
		missing = append(missing, StageFieldEscalateTo)
	}

	if s.Escalation.TimeoutMinutes <= 0 {
		missing = append(missing, StageFieldTimeout)
	}

	if s.Assignment.Size() == 0 {
		missing = append(missing, StageFieldAssignment)
	}

	return missing
}

// Normalize restores the escalation and assignment invariants of a stage that was
// decoded rather than built through its setters.
func (s *Stage) Normalize() {
	s.Escalation.Normalize()
	s.Assignment.Normalize()
}

// Clone returns a deep copy of the stage.
func (s Stage) Clone() Stage {
	s.Escalation = s.Escalation.Clone()
	s.Assignment = s.Assignment.Clone()

	return s
}

// CloneStages deep-copies a stage sequence.
func CloneStages(stages []Stage) []Stage {
	cloned := make([]Stage, len(stages))
	for i, stage := range stages {
		cloned[i] = stage.Clone()
	}

	return cloned
}

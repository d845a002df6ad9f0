package web

import (
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/services"
)

// BasicInfoRequest is the body of PUT /sessions/:sid/basic-info. Field rules are
// enforced when the session advances, so every field is optional here.
type BasicInfoRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ActionID     string `json:"action_id"`
	BranchID     string `json:"branch_id"`
	DepartmentID string `json:"department_id"`
}

func (r BasicInfoRequest) toModel() models.BasicInfo {
	return models.BasicInfo{
		Name:         r.Name,
		Description:  r.Description,
		ActionID:     r.ActionID,
		BranchID:     r.BranchID,
		DepartmentID: r.DepartmentID,
	}
}

// ModeRequest is the body of PUT /sessions/:sid/mode.
type ModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=rigid flexible"`
}

// StageRequest is the body of PUT /sessions/:sid/stages/:stageId. Omitted fields are unchanged.
type StageRequest struct {
	Type     *string `json:"type,omitempty"     validate:"omitempty,oneof=review approval documentation verification"`
	Expanded *bool   `json:"expanded,omitempty"`
}

func (r StageRequest) toUpdate() services.StageUpdate {
	update := services.StageUpdate{Expanded: r.Expanded}

	if r.Type != nil {
		stageType := models.StageType(*r.Type)
		update.Type = &stageType
	}

	return update
}

// ActorKeyRequest references a user or role of the directory.
type ActorKeyRequest struct {
	Kind string `json:"kind" validate:"required,oneof=user role"`
	ID   string `json:"id"   validate:"required"`
}

func (r ActorKeyRequest) toModel() models.ActorKey {
	return models.ActorKey{Kind: models.ActorKind(r.Kind), ID: r.ID}
}

// EscalationRequest is the body of PUT /sessions/:sid/stages/:stageId/escalation.
type EscalationRequest struct {
	Clear         bool             `json:"clear"`
	EscalateTo    *ActorKeyRequest `json:"escalate_to,omitempty"`
	PresetMinutes *int             `json:"preset_minutes,omitempty"`
	Custom        *string          `json:"custom,omitempty"`
}

func (r EscalationRequest) toUpdate() services.EscalationUpdate {
	update := services.EscalationUpdate{
		Clear:         r.Clear,
		PresetMinutes: r.PresetMinutes,
		Custom:        r.Custom,
	}

	if r.EscalateTo != nil {
		key := r.EscalateTo.toModel()
		update.EscalateTo = &key
	}

	return update
}

// AssignRequest is the body of POST /sessions/:sid/stages/:stageId/assignees.
type AssignRequest struct {
	Actors []ActorKeyRequest `json:"actors" validate:"required,min=1,dive"`
}

func (r AssignRequest) keys() []models.ActorKey {
	keys := make([]models.ActorKey, 0, len(r.Actors))
	for _, actor := range r.Actors {
		keys = append(keys, actor.toModel())
	}

	return keys
}

// StagesResponse carries the stage sequence after a stage operation.
type StagesResponse struct {
	Stages []models.Stage `json:"stages"`
}

// StoredResponse names the version created by a save or publish.
type StoredResponse struct {
	ID string `json:"id"`
}

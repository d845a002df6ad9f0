// Package models defines the workflow definition model edited by the admin console:
// stages, their escalation protocols and actor assignments.
package models

import (
	"errors"
	"strings"
	"time"
)

// MaxDescriptionWords bounds the definition description.
const MaxDescriptionWords = 24

// ErrInvalidExecutionMode is returned for an unknown execution mode.
var ErrInvalidExecutionMode = errors.New("invalid execution mode")

// DefinitionStatus represents the lifecycle state of a stored definition.
type DefinitionStatus string

const (
	DefinitionStatusDraft       DefinitionStatus = "draft"       // Saved without completeness checks
	DefinitionStatusPublished   DefinitionStatus = "published"   // Current version of its group
	DefinitionStatusUnpublished DefinitionStatus = "unpublished" // Superseded by a newer publish
)

// ExecutionMode tags how an execution engine is expected to traverse stages.
//
// Rigid: stages run strictly in sequence order, a stage cannot start before its
// predecessor reaches a terminal state, and reordering after publish is not allowed.
//
// Flexible: stages may run out of order, be skipped or run concurrently; only
// eventual completion of every required stage is guaranteed.
//
// Nothing in this module traverses stages; the mode is stored and validated only.
type ExecutionMode string

const (
	ExecutionModeRigid    ExecutionMode = "rigid"
	ExecutionModeFlexible ExecutionMode = "flexible"
)

// Valid reports whether m is a known execution mode.
func (m ExecutionMode) Valid() bool {
	return m == ExecutionModeRigid || m == ExecutionModeFlexible
}

// BasicInfo holds the fields collected by the first wizard phase.
type BasicInfo struct {
	Name         string `json:"name"          validate:"required"`
	Description  string `json:"description"   validate:"maxwords=24"`
	ActionID     string `json:"action_id"     validate:"required"`
	BranchID     string `json:"branch_id"     validate:"required"`
	DepartmentID string `json:"department_id" validate:"required"`
}

// Definition is a workflow definition: basic info plus an ordered, non-empty stage list.
type Definition struct {
	ID       string `json:"id"`
	GroupID  string `json:"group_id"`            // Stable ID linking all versions
	ParentID string `json:"parent_id,omitempty"` // Stored version this one was derived from
	Version  int    `json:"version"`

	BasicInfo

	ExecutionMode ExecutionMode    `json:"execution_mode"`
	Stages        []Stage          `json:"stages"`
	Status        DefinitionStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	PublishedAt   *time.Time       `json:"published_at,omitempty"`
}

// Clone returns a deep copy of the definition.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}

	cloned := *d
	cloned.Stages = CloneStages(d.Stages)

	if d.PublishedAt != nil {
		publishedAt := *d.PublishedAt
		cloned.PublishedAt = &publishedAt
	}

	return &cloned
}

// IncompleteStageIDs returns, in sequence order, the ids of stages that are not complete.
func (d *Definition) IncompleteStageIDs() []string {
	ids := make([]string, 0)

	for _, stage := range d.Stages {
		if !stage.Complete() {
			ids = append(ids, stage.ID)
		}
	}

	return ids
}

// StageIndex returns the position of the stage with the given id, or -1.
func (d *Definition) StageIndex(id string) int {
	for i, stage := range d.Stages {
		if stage.ID == id {
			return i
		}
	}

	return -1
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

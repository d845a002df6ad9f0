// Package events defines event types and structures for workflow definition lifecycle notifications.
package events

import (
	"time"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const Topic = "stageflow.definitions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	DefinitionDraftSavedEvent EventType = "definition.draft_saved"
	DefinitionPublishedEvent  EventType = "definition.published"
)

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	DefinitionID string         `json:"definition_id"`
	GroupID      string         `json:"group_id"`
	SessionID    string         `json:"session_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// DefinitionDraftSaved is emitted after a draft version was stored.
type DefinitionDraftSaved struct {
	BaseEvent

	Version    int `json:"version"`
	StageCount int `json:"stage_count"`
}

func (d DefinitionDraftSaved) GetType() EventType {
	return DefinitionDraftSavedEvent
}

// DefinitionPublished is emitted after a definition became the published version of its group.
type DefinitionPublished struct {
	BaseEvent

	Version       int                  `json:"version"`
	Name          string               `json:"name"`
	ActionID      string               `json:"action_id"`
	ExecutionMode models.ExecutionMode `json:"execution_mode"`
	StageCount    int                  `json:"stage_count"`
	PublishedAt   time.Time            `json:"published_at"`
}

func (d DefinitionPublished) GetType() EventType {
	return DefinitionPublishedEvent
}

func newBase(eventType EventType, definition *models.Definition, sessionID string) BaseEvent {
	return BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		DefinitionID: definition.ID,
		GroupID:      definition.GroupID,
		SessionID:    sessionID,
	}
}

// NewDefinitionDraftSaved builds the event for a stored draft version.
func NewDefinitionDraftSaved(definition *models.Definition, sessionID string) DefinitionDraftSaved {
	return DefinitionDraftSaved{
		BaseEvent:  newBase(DefinitionDraftSavedEvent, definition, sessionID),
		Version:    definition.Version,
		StageCount: len(definition.Stages),
	}
}

// NewDefinitionPublished builds the event for a published version.
func NewDefinitionPublished(definition *models.Definition, sessionID string) DefinitionPublished {
	event := DefinitionPublished{
		BaseEvent:     newBase(DefinitionPublishedEvent, definition, sessionID),
		Version:       definition.Version,
		Name:          definition.Name,
		ActionID:      definition.ActionID,
		ExecutionMode: definition.ExecutionMode,
		StageCount:    len(definition.Stages),
	}

	if definition.PublishedAt != nil {
		event.PublishedAt = *definition.PublishedAt
	} else {
		event.PublishedAt = event.Timestamp
	}

	return event
}

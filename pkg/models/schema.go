package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument is returned when an imported definition document does not match DefinitionSchema.
var ErrInvalidDocument = errors.New("invalid definition document")

// JSONSchema represents a JSON Schema used to validate imported documents.
type JSONSchema struct {
	Type                 string               `json:"type"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	Required             []string             `json:"required,omitempty"`
	Title                string               `json:"title,omitempty"`
	Description          string               `json:"description,omitempty"`
	AdditionalProperties *bool                `json:"additionalProperties,omitempty"`
}

// Property represents a JSON Schema property.
type Property struct {
	Type        any                  `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []any                `json:"enum,omitempty"`
	Minimum     *int                 `json:"minimum,omitempty"`
	MinLength   *int                 `json:"minLength,omitempty"`
	MinItems    *int                 `json:"minItems,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
}

func intPtr(v int) *int { return &v }

func actorProperty(description string) *Property {
	return &Property{
		Type:        []any{"object", "null"},
		Description: description,
		Properties: map[string]*Property{
			"kind":         {Type: "string", Enum: []any{string(ActorKindUser), string(ActorKindRole)}},
			"id":           {Type: "string", MinLength: intPtr(1)},
			"display_name": {Type: "string"},
			"member_count": {Type: "integer", Minimum: intPtr(0)},
		},
		Required: []string{"kind", "id"},
	}
}

// DefinitionSchema describes the document accepted by definition import.
// Completeness is not part of the schema: imported documents load as drafts.
func DefinitionSchema() *JSONSchema {
	stageTypes := []any{""}
	for _, t := range StageTypes {
		stageTypes = append(stageTypes, string(t))
	}

	return &JSONSchema{
		Type:        "object",
		Title:       "Workflow definition",
		Description: "Basic info and personnel process flow of a workflow definition",
		Properties: map[string]*Property{
			"name":          {Type: "string"},
			"description":   {Type: "string"},
			"action_id":     {Type: "string"},
			"branch_id":     {Type: "string"},
			"department_id": {Type: "string"},
			"execution_mode": {
				Type: "string",
				Enum: []any{string(ExecutionModeRigid), string(ExecutionModeFlexible)},
			},
			"stages": {
				Type:     "array",
				MinItems: intPtr(1),
				Items: &Property{
					Type: "object",
					Properties: map[string]*Property{
						"type": {Type: "string", Enum: stageTypes},
						"escalation": {
							Type: "object",
							Properties: map[string]*Property{
								"escalate_to":     actorProperty("Fallback actor"),
								"timeout_minutes": {Type: "integer", Minimum: intPtr(0)},
								"preset":          {Type: "integer"},
								"custom":          {Type: "string"},
							},
						},
						"assignment": {
							Type: "object",
							Properties: map[string]*Property{
								"users": {Type: "array", Items: actorProperty("Assigned user")},
								"roles": {Type: "array", Items: actorProperty("Assigned role")},
							},
						},
						"expanded": {Type: "boolean"},
					},
				},
			},
		},
		Required: []string{"name", "stages"},
	}
}

// ValidateDocument checks a decoded JSON document against DefinitionSchema.
func ValidateDocument(document any) error {
	schemaLoader := gojsonschema.NewGoLoader(DefinitionSchema())
	dataLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate definition document: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(messages, "; "))
	}

	return nil
}

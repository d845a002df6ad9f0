// Package wizard implements the two-phase authoring flow for workflow definitions:
// basic info first, then the personnel process flow.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dukex/stageflow/pkg/builder"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Phase is the current step of the wizard.
type Phase string

const (
	PhaseBasicInfo   Phase = "basic_info"
	PhaseProcessFlow Phase = "process_flow"
)

var (
	// ErrFieldValidation is wrapped by FieldValidationError.
	ErrFieldValidation = errors.New("field validation failed")

	// ErrIncompleteStages is wrapped by IncompleteStagesError.
	ErrIncompleteStages = errors.New("incomplete stages")

	// ErrWrongPhase is returned when an action is not available in the current phase.
	ErrWrongPhase = errors.New("action not available in current phase")

	// ErrSessionClosed is returned for any action after publish or cancel.
	ErrSessionClosed = errors.New("wizard session closed")
)

// Basic info field keys used in FieldValidationError.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldAction      = "action"
	FieldBranch      = "branch"
	FieldDepartment  = "department"
)

// FieldValidationError reports every invalid basic info field, keyed by field.
type FieldValidationError struct {
	Fields map[string]string
}

func (e *FieldValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}

	return fmt.Sprintf("%v: %s", ErrFieldValidation, strings.Join(parts, "; "))
}

func (e *FieldValidationError) Unwrap() error {
	return ErrFieldValidation
}

// IncompleteStagesError lists, in sequence order, the stages that block publishing.
type IncompleteStagesError struct {
	StageIDs []string
}

func (e *IncompleteStagesError) Error() string {
	return fmt.Sprintf("%v: %s", ErrIncompleteStages, strings.Join(e.StageIDs, ", "))
}

func (e *IncompleteStagesError) Unwrap() error {
	return ErrIncompleteStages
}

// Store is the persistence collaborator the wizard hands finished definitions to.
type Store interface {
	SaveDraft(ctx context.Context, definition *models.Definition) (persistence.DraftID, error)
	Publish(ctx context.Context, definition *models.Definition) (persistence.PublishedID, error)
}

// Wizard drives one authoring session. It is not safe for concurrent use.
type Wizard struct {
	phase    Phase
	builder  *builder.Builder
	store    Store
	validate *validator.Validate
	closed   bool
}

// New starts a session for a brand new definition in a new version group.
func New(store Store) *Wizard {
	b := builder.New()
	b.SetGroup(uuid.New().String())

	return newWizard(store, b)
}

// Resume starts a session seeded from a stored or imported definition. Saving it
// produces a new version; the stored definition itself is never modified.
func Resume(store Store, definition *models.Definition) *Wizard {
	b := builder.NewFrom(definition)
	if b.Definition().GroupID == "" {
		b.SetGroup(uuid.New().String())
	}

	return newWizard(store, b)
}

func newWizard(store Store, b *builder.Builder) *Wizard {
	return &Wizard{
		phase:    PhaseBasicInfo,
		builder:  b,
		store:    store,
		validate: models.NewValidator(),
	}
}

// Phase returns the current phase.
func (w *Wizard) Phase() Phase {
	return w.phase
}

// Closed reports whether the session ended by publish or cancel.
func (w *Wizard) Closed() bool {
	return w.closed
}

// Builder gives access to the stage operations of the definition under construction.
func (w *Wizard) Builder() (*builder.Builder, error) {
	if w.closed {
		return nil, ErrSessionClosed
	}

	return w.builder, nil
}

// Definition returns a copy of the definition under construction.
func (w *Wizard) Definition() *models.Definition {
	return w.builder.Definition()
}

// SetBasicInfo stores basic info fields. It is only available in the basic info phase.
func (w *Wizard) SetBasicInfo(info models.BasicInfo) error {
	if err := w.require(PhaseBasicInfo); err != nil {
		return err
	}

	w.builder.SetBasicInfo(info)

	return nil
}

// Advance validates the basic info and moves to the process flow phase.
func (w *Wizard) Advance() error {
	if err := w.require(PhaseBasicInfo); err != nil {
		return err
	}

	if fields := w.ValidateBasicInfo(w.builder.BasicInfo()); len(fields) > 0 {
		return &FieldValidationError{Fields: fields}
	}

	w.phase = PhaseProcessFlow

	return nil
}

// Retreat returns to the basic info phase. Collected data is preserved.
func (w *Wizard) Retreat() error {
	if w.closed {
		return ErrSessionClosed
	}

	w.phase = PhaseBasicInfo

	return nil
}

// SaveDraft stores the definition without completeness checks. The session stays open.
func (w *Wizard) SaveDraft(ctx context.Context) (persistence.DraftID, error) {
	if err := w.require(PhaseProcessFlow); err != nil {
		return "", err
	}

	id, err := w.store.SaveDraft(ctx, w.builder.Definition())
	if err != nil {
		return "", fmt.Errorf("failed to save draft: %w", err)
	}

	return id, nil
}

// Publish validates every stage and hands the definition to the store. On an
// IncompleteStagesError the session stays in the process flow phase unchanged; on
// success the session is closed.
func (w *Wizard) Publish(ctx context.Context) (persistence.PublishedID, error) {
	if err := w.require(PhaseProcessFlow); err != nil {
		return "", err
	}

	if incomplete := w.builder.ValidateForPublish(); len(incomplete) > 0 {
		return "", &IncompleteStagesError{StageIDs: incomplete}
	}

	id, err := w.store.Publish(ctx, w.builder.Definition())
	if err != nil {
		return "", fmt.Errorf("failed to publish definition: %w", err)
	}

	w.closed = true

	return id, nil
}

// Cancel abandons the session. Nothing is persisted.
func (w *Wizard) Cancel() {
	w.closed = true
}

// ValidateBasicInfo returns a field→message map for every invalid basic info field.
func (w *Wizard) ValidateBasicInfo(info models.BasicInfo) map[string]string {
	info.Name = strings.TrimSpace(info.Name)

	fields := make(map[string]string)

	err := w.validate.Struct(info)
	if err == nil {
		return fields
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		fields[FieldName] = err.Error()

		return fields
	}

	for _, fieldErr := range validationErrors {
		key, message := describe(fieldErr)
		fields[key] = message
	}

	return fields
}

func (w *Wizard) require(phase Phase) error {
	if w.closed {
		return ErrSessionClosed
	}

	if w.phase != phase {
		return fmt.Errorf("%w: in %s, requires %s", ErrWrongPhase, w.phase, phase)
	}

	return nil
}

func describe(fieldErr validator.FieldError) (string, string) {
	switch fieldErr.StructField() {
	case "Name":
		return FieldName, "name is required"
	case "Description":
		return FieldDescription, fmt.Sprintf("description must be at most %d words", models.MaxDescriptionWords)
	case "ActionID":
		return FieldAction, "a triggering action must be selected"
	case "BranchID":
		return FieldBranch, "a branch must be selected"
	case "DepartmentID":
		return FieldDepartment, "a department must be selected"
	default:
		return strings.ToLower(fieldErr.Field()), fieldErr.Error()
	}
}

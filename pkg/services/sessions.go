package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/stageflow/pkg/builder"
	"github.com/dukex/stageflow/pkg/directory"
	"github.com/dukex/stageflow/pkg/eventbus"
	"github.com/dukex/stageflow/pkg/events"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/otelhelper"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/dukex/stageflow/pkg/wizard"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SessionState is a snapshot of an authoring session.
type SessionState struct {
	ID               string             `json:"id"`
	Phase            wizard.Phase       `json:"phase"`
	Definition       *models.Definition `json:"definition"`
	IncompleteStages []IncompleteStage  `json:"incomplete_stages"`
}

// IncompleteStage names a stage that blocks publishing and what it lacks.
type IncompleteStage struct {
	StageID string   `json:"stage_id"`
	Missing []string `json:"missing"`
}

// StageUpdate changes the editable stage fields. Nil fields are left as they are.
type StageUpdate struct {
	Type     *models.StageType
	Expanded *bool
}

// EscalationUpdate edits a stage's escalation protocol. Clear runs first, so a
// single update can reset the protocol and set new values.
type EscalationUpdate struct {
	Clear         bool
	EscalateTo    *models.ActorKey
	PresetMinutes *int
	Custom        *string
}

type session struct {
	mu     sync.Mutex
	wizard *wizard.Wizard
}

// Sessions keeps the open authoring sessions. Every session is serialized by its
// own mutex; sessions end and are forgotten on publish or cancel.
type Sessions struct {
	repository persistence.DefinitionRepository
	directory  directory.Directory
	publisher  eventbus.EventPublisher
	tracer     trace.Tracer
	logger     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSessions creates the session service. publisher may be nil to disable lifecycle events.
func NewSessions(
	repository persistence.DefinitionRepository,
	dir directory.Directory,
	publisher eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Sessions {
	return &Sessions{
		repository: repository,
		directory:  dir,
		publisher:  publisher,
		tracer:     tracer,
		logger:     logger,
		sessions:   make(map[string]*session),
	}
}

// Start opens a session for a brand new definition.
func (s *Sessions) Start(ctx context.Context) *SessionState {
	return s.open(ctx, wizard.New(s.repository))
}

// StartFromDefinition opens a session seeded from a stored version. Saving it
// produces the next version of the same group.
func (s *Sessions) StartFromDefinition(ctx context.Context, definitionID string) (*SessionState, error) {
	definition, err := s.repository.GetByID(ctx, definitionID)
	if err != nil {
		return nil, newError("StartFromDefinition", err)
	}

	return s.open(ctx, wizard.Resume(s.repository, definition)), nil
}

// Import opens a session from a JSON definition document. The document is checked
// against models.DefinitionSchema; stage completeness is not required. Escalation
// targets and assignees must exist in the directory; their display data is taken
// from it.
func (s *Sessions) Import(ctx context.Context, document []byte) (*SessionState, error) {
	var decoded any

	err := json.Unmarshal(document, &decoded)
	if err != nil {
		return nil, NewValidationError("Import", "INVALID_DOCUMENT", "document is not valid JSON",
			fmt.Errorf("%w: %w", models.ErrInvalidDocument, err))
	}

	err = models.ValidateDocument(decoded)
	if err != nil {
		return nil, newError("Import", err)
	}

	var definition models.Definition

	err = json.Unmarshal(document, &definition)
	if err != nil {
		return nil, newError("Import", fmt.Errorf("%w: %w", models.ErrInvalidDocument, err))
	}

	err = s.resolveImported(ctx, &definition)
	if err != nil {
		return nil, err
	}

	// Imported documents always start a new version group.
	definition.ID = ""
	definition.GroupID = ""
	definition.ParentID = ""
	definition.Version = 0

	return s.open(ctx, wizard.Resume(s.repository, &definition)), nil
}

// resolveImported checks each stage's timeout source and replaces its actor
// references with the directory's. Assignments are rebuilt through Assign.
func (s *Sessions) resolveImported(ctx context.Context, definition *models.Definition) error {
	for i := range definition.Stages {
		stage := &definition.Stages[i]
		protocol := stage.Escalation

		if protocol.Preset != 0 && protocol.Custom != "" {
			return NewValidationError("Import", "AMBIGUOUS_TIMEOUT",
				fmt.Sprintf("stage %d: preset and custom timeout are mutually exclusive", i+1),
				fmt.Errorf("%w: stage %d has both preset and custom timeout", models.ErrInvalidDocument, i+1))
		}

		if protocol.Preset != 0 && !slices.Contains(models.TimeoutPresets, protocol.Preset) {
			return newError("Import", fmt.Errorf("stage %d: %w: %d", i+1, models.ErrInvalidPreset, protocol.Preset))
		}

		members := stage.Assignment.Members()

		keys := make([]models.ActorKey, 0, len(members)+1)
		for _, member := range members {
			keys = append(keys, member.Key())
		}

		if protocol.EscalateTo != nil {
			keys = append(keys, protocol.EscalateTo.Key())
		}

		if len(keys) == 0 {
			continue
		}

		refs, err := directory.Resolve(ctx, s.directory, keys)
		if err != nil {
			return newError("Import", fmt.Errorf("stage %d: %w", i+1, err))
		}

		if protocol.EscalateTo != nil {
			target := refs[len(refs)-1]
			stage.Escalation.EscalateTo = &target
			refs = refs[:len(refs)-1]
		}

		stage.Assignment = models.AssignmentSet{Users: []models.ActorRef{}, Roles: []models.ActorRef{}}
		stage.Assignment.Assign(refs...)
	}

	return nil
}

// Get returns the current state of a session.
func (s *Sessions) Get(_ context.Context, sessionID string) (*SessionState, error) {
	var state *SessionState

	err := s.with(sessionID, func(w *wizard.Wizard) error {
		state = snapshot(sessionID, w)

		return nil
	})
	if err != nil {
		return nil, newError("Get", err)
	}

	return state, nil
}

// Cancel abandons a session without persisting anything.
func (s *Sessions) Cancel(ctx context.Context, sessionID string) error {
	err := s.with(sessionID, func(w *wizard.Wizard) error {
		w.Cancel()

		return nil
	})
	if err != nil {
		return newError("Cancel", err)
	}

	s.logger.InfoContext(ctx, "Authoring session cancelled", "session_id", sessionID)

	return nil
}

// SetBasicInfo stores the basic info fields of the first phase.
func (s *Sessions) SetBasicInfo(_ context.Context, sessionID string, info models.BasicInfo) (*SessionState, error) {
	return s.transition("SetBasicInfo", sessionID, func(w *wizard.Wizard) error {
		return w.SetBasicInfo(info)
	})
}

// Advance validates basic info and moves to the process flow phase.
func (s *Sessions) Advance(_ context.Context, sessionID string) (*SessionState, error) {
	return s.transition("Advance", sessionID, (*wizard.Wizard).Advance)
}

// Retreat returns to the basic info phase.
func (s *Sessions) Retreat(_ context.Context, sessionID string) (*SessionState, error) {
	return s.transition("Retreat", sessionID, (*wizard.Wizard).Retreat)
}

// SetMode sets the execution mode of the definition.
func (s *Sessions) SetMode(_ context.Context, sessionID string, mode models.ExecutionMode) (*SessionState, error) {
	return s.transition("SetMode", sessionID, func(w *wizard.Wizard) error {
		b, err := w.Builder()
		if err != nil {
			return err
		}

		return b.SetMode(mode)
	})
}

// AppendStage adds an empty stage at the end of the sequence.
func (s *Sessions) AppendStage(_ context.Context, sessionID string) ([]models.Stage, error) {
	return s.stages("AppendStage", sessionID, func(b *builder.Builder) ([]models.Stage, error) {
		return b.Append(), nil
	})
}

// RemoveStage deletes a stage. The last remaining stage cannot be removed.
func (s *Sessions) RemoveStage(_ context.Context, sessionID, stageID string) ([]models.Stage, error) {
	return s.stages("RemoveStage", sessionID, func(b *builder.Builder) ([]models.Stage, error) {
		return b.Remove(stageID)
	})
}

// MoveStageUp swaps a stage with its predecessor.
func (s *Sessions) MoveStageUp(_ context.Context, sessionID, stageID string) ([]models.Stage, error) {
	return s.stages("MoveStageUp", sessionID, func(b *builder.Builder) ([]models.Stage, error) {
		return b.MoveUp(stageID)
	})
}

// MoveStageDown swaps a stage with its successor.
func (s *Sessions) MoveStageDown(_ context.Context, sessionID, stageID string) ([]models.Stage, error) {
	return s.stages("MoveStageDown", sessionID, func(b *builder.Builder) ([]models.Stage, error) {
		return b.MoveDown(stageID)
	})
}

// UpdateStage changes a stage's type or the expanded flag of its escalation editor.
func (s *Sessions) UpdateStage(_ context.Context, sessionID, stageID string, update StageUpdate) ([]models.Stage, error) {
	return s.stages("UpdateStage", sessionID, func(b *builder.Builder) ([]models.Stage, error) {
		return b.Update(stageID, func(stage *models.Stage) error {
			if update.Type != nil {
				if err := stage.SetType(*update.Type); err != nil {
					return err
				}
			}

			if update.Expanded != nil {
				if *update.Expanded {
					stage.OpenEscalationEditor()
				} else {
					stage.CloseEscalationEditor()
				}
			}

			return nil
		})
	})
}

// UpdateEscalation edits a stage's escalation protocol. The escalation target is
// resolved against the directory.
func (s *Sessions) UpdateEscalation(ctx context.Context, sessionID, stageID string, update EscalationUpdate) ([]models.Stage, error) {
	if update.PresetMinutes != nil && update.Custom != nil {
		return nil, NewValidationError("UpdateEscalation", "AMBIGUOUS_TIMEOUT",
			"preset and custom timeout are mutually exclusive", ErrInvalidRequest)
	}

	var target *models.ActorRef

	if update.EscalateTo != nil {
		refs, err := directory.Resolve(ctx, s.directory, []models.ActorKey{*update.EscalateTo})
		if err != nil {
			return nil, newError("UpdateEscalation", err)
		}

		target = &refs[0]
	}

	return s.stages("UpdateEscalation", sessionID, func(b *builder.Builder) ([]models.Stage, error) {
		return b.Update(stageID, func(stage *models.Stage) error {
			if update.Clear {
				stage.Escalation.Clear()
			}

			if target != nil {
				stage.Escalation.SetEscalateTo(*target)
			}

			if update.PresetMinutes != nil {
				if err := stage.Escalation.SetTimeoutFromPreset(*update.PresetMinutes); err != nil {
					return err
				}
			}

			if update.Custom != nil {
				stage.Escalation.SetTimeoutFromCustom(*update.Custom)
			}

			return nil
		})
	})
}

// AssignActors resolves keys against the directory and adds them to a stage's
// assignment. Any unknown key rejects the whole request.
func (s *Sessions) AssignActors(ctx context.Context, sessionID, stageID string, keys []models.ActorKey) ([]models.Stage, error) {
	if len(keys) == 0 {
		return nil, NewValidationError("AssignActors", "NO_ACTORS", "at least one actor is required", ErrInvalidRequest)
	}

	refs, err := directory.Resolve(ctx, s.directory, keys)
	if err != nil {
		return nil, newError("AssignActors", err)
	}

	return s.stages("AssignActors", sessionID, func(b *builder.Builder) ([]models.Stage, error) {
		return b.Update(stageID, func(stage *models.Stage) error {
			stage.Assignment.Assign(refs...)

			return nil
		})
	})
}

// UnassignActor removes an actor from a stage's assignment. Removing an actor that
// is not assigned leaves the stage unchanged.
func (s *Sessions) UnassignActor(_ context.Context, sessionID, stageID string, key models.ActorKey) ([]models.Stage, error) {
	if !key.Kind.Valid() {
		return nil, newError("UnassignActor", models.ErrInvalidActorKind)
	}

	return s.stages("UnassignActor", sessionID, func(b *builder.Builder) ([]models.Stage, error) {
		return b.Update(stageID, func(stage *models.Stage) error {
			stage.Assignment.Unassign(models.ActorRef{Kind: key.Kind, ID: key.ID})

			return nil
		})
	})
}

// SaveDraft stores the definition as a new draft version. The session stays open.
func (s *Sessions) SaveDraft(ctx context.Context, sessionID string) (persistence.DraftID, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "sessions.save_draft",
		attribute.String(otelhelper.SessionIDKey, sessionID))
	defer span.End()

	var id persistence.DraftID

	err := s.with(sessionID, func(w *wizard.Wizard) error {
		var err error

		id, err = w.SaveDraft(ctx)

		return err
	})
	if err != nil {
		s.recordFailure(ctx, span, "Failed to save draft", sessionID, err)

		return "", newError("SaveDraft", err)
	}

	span.SetAttributes(attribute.String(otelhelper.DefinitionIDKey, string(id)))
	s.logger.InfoContext(ctx, "Draft saved", "session_id", sessionID, "definition_id", id)

	s.notify(ctx, string(id), func(definition *models.Definition) eventbus.Event {
		return events.NewDefinitionDraftSaved(definition, sessionID)
	})

	return id, nil
}

// Publish validates every stage and stores the definition as the published version
// of its group. On success the session ends.
func (s *Sessions) Publish(ctx context.Context, sessionID string) (persistence.PublishedID, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "sessions.publish",
		attribute.String(otelhelper.SessionIDKey, sessionID))
	defer span.End()

	var id persistence.PublishedID

	err := s.with(sessionID, func(w *wizard.Wizard) error {
		definition := w.Definition()
		span.SetAttributes(
			attribute.String(otelhelper.GroupIDKey, definition.GroupID),
			attribute.Int(otelhelper.StageCountKey, len(definition.Stages)),
		)

		var err error

		id, err = w.Publish(ctx)

		return err
	})
	if err != nil {
		s.recordFailure(ctx, span, "Failed to publish definition", sessionID, err)

		return "", newError("Publish", err)
	}

	span.SetAttributes(attribute.String(otelhelper.DefinitionIDKey, string(id)))
	s.logger.InfoContext(ctx, "Definition published", "session_id", sessionID, "definition_id", id)

	s.notify(ctx, string(id), func(definition *models.Definition) eventbus.Event {
		return events.NewDefinitionPublished(definition, sessionID)
	})

	return id, nil
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

func (s *Sessions) open(ctx context.Context, w *wizard.Wizard) *SessionState {
	id := uuid.New().String()

	s.mu.Lock()
	s.sessions[id] = &session{wizard: w}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Authoring session started", "session_id", id, "group_id", w.Definition().GroupID)

	return snapshot(id, w)
}

// with runs fn while holding the session lock and forgets the session once it is closed.
func (s *Sessions) with(sessionID string, fn func(*wizard.Wizard) error) error {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	err := fn(sess.wizard)

	if sess.wizard.Closed() {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
	}

	return err
}

func (s *Sessions) transition(op, sessionID string, fn func(*wizard.Wizard) error) (*SessionState, error) {
	var state *SessionState

	err := s.with(sessionID, func(w *wizard.Wizard) error {
		if err := fn(w); err != nil {
			return err
		}

		state = snapshot(sessionID, w)

		return nil
	})
	if err != nil {
		return nil, newError(op, err)
	}

	return state, nil
}

func (s *Sessions) stages(op, sessionID string, fn func(*builder.Builder) ([]models.Stage, error)) ([]models.Stage, error) {
	var stages []models.Stage

	err := s.with(sessionID, func(w *wizard.Wizard) error {
		b, err := w.Builder()
		if err != nil {
			return err
		}

		stages, err = fn(b)

		return err
	})
	if err != nil {
		return nil, newError(op, err)
	}

	return stages, nil
}

// notify reads the stored version back and publishes the event built from it.
// Event failures are logged; the stored version is already authoritative.
func (s *Sessions) notify(ctx context.Context, definitionID string, build func(*models.Definition) eventbus.Event) {
	if s.publisher == nil {
		return
	}

	definition, err := s.repository.GetByID(ctx, definitionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load stored definition for event", "definition_id", definitionID, "error", err)

		return
	}

	event := build(definition)

	err = s.publisher.Publish(ctx, definition.GroupID, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "definition_id", definitionID, "error", err)
	}
}

// recordFailure tells refused requests apart from storage failures: only the latter
// fail the span and are logged.
func (s *Sessions) recordFailure(ctx context.Context, span trace.Span, msg, sessionID string, err error) {
	if IsNotFoundError(err) || IsConflictError(err) || IsIncompleteStagesError(err) {
		otelhelper.SetRejected(span, err)

		return
	}

	otelhelper.SetError(span, err)
	s.logger.ErrorContext(ctx, msg, "session_id", sessionID, "error", err)
}

func snapshot(id string, w *wizard.Wizard) *SessionState {
	definition := w.Definition()

	incomplete := make([]IncompleteStage, 0)

	for _, stage := range definition.Stages {
		if missing := stage.MissingFields(); len(missing) > 0 {
			incomplete = append(incomplete, IncompleteStage{StageID: stage.ID, Missing: missing})
		}
	}

	return &SessionState{
		ID:               id,
		Phase:            w.Phase(),
		Definition:       definition,
		IncompleteStages: incomplete,
	}
}

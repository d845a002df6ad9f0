// Package web provides HTTP handlers and REST API endpoints for authoring workflow definitions.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/dukex/stageflow/pkg/directory"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/dukex/stageflow/pkg/services"
	"github.com/dukex/stageflow/pkg/wizard"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Catalog kinds served by GET /catalog/:kind.
const (
	CatalogUsers       = "users"
	CatalogRoles       = "roles"
	CatalogBranches    = "branches"
	CatalogDepartments = "departments"
	CatalogActions     = "actions"
)

// Directory is what the handlers need from the actor directory and option catalogs.
type Directory interface {
	directory.Directory
	directory.Catalog
}

type APIHandlers struct {
	sessions    *services.Sessions
	definitions *services.Definitions
	directory   Directory
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	sessions *services.Sessions,
	definitions *services.Definitions,
	dir Directory,
	persistence persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		sessions:    sessions,
		definitions: definitions,
		directory:   dir,
		persistence: persistence,
		validator:   validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Stageflow API is healthy"
	httpStatus := http.StatusOK
	repositoryCheck := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Stageflow API is unhealthy"
		httpStatus = http.StatusInternalServerError
		repositoryCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetCatalog(c fiber.Ctx) error {
	var (
		entries any
		err     error
	)

	ctx := c.Context()

	switch kind := c.Params("kind"); kind {
	case CatalogUsers:
		entries, err = h.directory.ListAssignableUsers(ctx)
	case CatalogRoles:
		entries, err = h.directory.ListAssignableRoles(ctx)
	case CatalogBranches:
		entries, err = h.directory.Branches(ctx)
	case CatalogDepartments:
		entries, err = h.directory.Departments(ctx)
	case CatalogActions:
		entries, err = h.directory.Actions(ctx)
	default:
		return notFound(c, "catalog_not_found", "unknown catalog "+kind)
	}

	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(entries)
}

func (h *APIHandlers) StartSession(c fiber.Ctx) error {
	state := h.sessions.Start(c.Context())

	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *APIHandlers) ImportSession(c fiber.Ctx) error {
	state, err := h.sessions.Import(c.Context(), c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *APIHandlers) EditDefinition(c fiber.Ctx) error {
	state, err := h.sessions.StartFromDefinition(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	state, err := h.sessions.Get(c.Context(), c.Params("sid"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) CancelSession(c fiber.Ctx) error {
	err := h.sessions.Cancel(c.Context(), c.Params("sid"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetBasicInfo(c fiber.Ctx) error {
	var req BasicInfoRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	fields, err := h.checkCatalog(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	if len(fields) > 0 {
		return fieldsProblem(c, fields)
	}

	state, err := h.sessions.SetBasicInfo(c.Context(), c.Params("sid"), req.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

// checkCatalog reports selected ids that are not in their catalog. Empty ids are
// left to the required checks run on advance.
func (h *APIHandlers) checkCatalog(ctx context.Context, req BasicInfoRequest) (map[string]string, error) {
	fields := make(map[string]string)

	checks := []struct {
		field string
		id    string
		list  func(context.Context) ([]directory.Option, error)
	}{
		{field: wizard.FieldAction, id: req.ActionID, list: h.directory.Actions},
		{field: wizard.FieldBranch, id: req.BranchID, list: h.directory.Branches},
		{field: wizard.FieldDepartment, id: req.DepartmentID, list: h.directory.Departments},
	}

	for _, check := range checks {
		if check.id == "" {
			continue
		}

		options, err := check.list(ctx)
		if err != nil {
			return nil, err
		}

		if !containsOption(options, check.id) {
			fields[check.field] = "unknown " + check.field + " " + check.id
		}
	}

	return fields, nil
}

func containsOption(options []directory.Option, id string) bool {
	for _, option := range options {
		if option.ID == id {
			return true
		}
	}

	return false
}

func (h *APIHandlers) Advance(c fiber.Ctx) error {
	state, err := h.sessions.Advance(c.Context(), c.Params("sid"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) Retreat(c fiber.Ctx) error {
	state, err := h.sessions.Retreat(c.Context(), c.Params("sid"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) SaveDraft(c fiber.Ctx) error {
	id, err := h.sessions.SaveDraft(c.Context(), c.Params("sid"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(StoredResponse{ID: string(id)})
}

func (h *APIHandlers) Publish(c fiber.Ctx) error {
	id, err := h.sessions.Publish(c.Context(), c.Params("sid"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(StoredResponse{ID: string(id)})
}

func (h *APIHandlers) SetMode(c fiber.Ctx) error {
	var req ModeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	state, err := h.sessions.SetMode(c.Context(), c.Params("sid"), models.ExecutionMode(req.Mode))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) AppendStage(c fiber.Ctx) error {
	stages, err := h.sessions.AppendStage(c.Context(), c.Params("sid"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(StagesResponse{Stages: stages})
}

func (h *APIHandlers) RemoveStage(c fiber.Ctx) error {
	return h.stagesResult(c)(h.sessions.RemoveStage(c.Context(), c.Params("sid"), c.Params("stageId")))
}

func (h *APIHandlers) MoveStageUp(c fiber.Ctx) error {
	return h.stagesResult(c)(h.sessions.MoveStageUp(c.Context(), c.Params("sid"), c.Params("stageId")))
}

func (h *APIHandlers) MoveStageDown(c fiber.Ctx) error {
	return h.stagesResult(c)(h.sessions.MoveStageDown(c.Context(), c.Params("sid"), c.Params("stageId")))
}

func (h *APIHandlers) UpdateStage(c fiber.Ctx) error {
	var req StageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	return h.stagesResult(c)(h.sessions.UpdateStage(c.Context(), c.Params("sid"), c.Params("stageId"), req.toUpdate()))
}

func (h *APIHandlers) UpdateEscalation(c fiber.Ctx) error {
	var req EscalationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	return h.stagesResult(c)(h.sessions.UpdateEscalation(c.Context(), c.Params("sid"), c.Params("stageId"), req.toUpdate()))
}

func (h *APIHandlers) AssignActors(c fiber.Ctx) error {
	var req AssignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	return h.stagesResult(c)(h.sessions.AssignActors(c.Context(), c.Params("sid"), c.Params("stageId"), req.keys()))
}

func (h *APIHandlers) UnassignActor(c fiber.Ctx) error {
	key := models.ActorKey{Kind: models.ActorKind(c.Params("kind")), ID: c.Params("actorId")}

	return h.stagesResult(c)(h.sessions.UnassignActor(c.Context(), c.Params("sid"), c.Params("stageId"), key))
}

func (h *APIHandlers) stagesResult(c fiber.Ctx) func([]models.Stage, error) error {
	return func(stages []models.Stage, err error) error {
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(StagesResponse{Stages: stages})
	}
}

func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	definition, err := h.definitions.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) GetGroup(c fiber.Ctx) error {
	groupID := c.Params("groupId")

	versions, err := h.definitions.ListGroup(c.Context(), groupID)
	if err != nil {
		return handleServiceError(c, err)
	}

	response := fiber.Map{
		"group_id": groupID,
		"versions": versions,
	}

	published, err := h.definitions.Published(c.Context(), groupID)

	switch {
	case err == nil:
		response["published_id"] = published.ID
	case !persistence.IsPublishedDefinitionNotFound(err):
		return handleServiceError(c, err)
	}

	return c.JSON(response)
}

func (h *APIHandlers) GetEscalationPlan(c fiber.Ctx) error {
	activatedAt := time.Now().UTC()

	if value := c.Query("activated_at"); value != "" {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return badRequest(c, "activated_at must be an RFC3339 timestamp")
		}

		activatedAt = parsed
	}

	plan, err := h.definitions.EscalationPlan(c.Context(), c.Params("id"), activatedAt)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"definition_id": c.Params("id"),
		"activated_at":  activatedAt,
		"stages":        plan,
	})
}

// Register mounts every endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/catalog/:kind", h.GetCatalog)

	s := router.Group("/sessions")
	s.Post("/", h.StartSession)
	s.Post("/import", h.ImportSession)
	s.Get("/:sid", h.GetSession)
	s.Delete("/:sid", h.CancelSession)
	s.Put("/:sid/basic-info", h.SetBasicInfo)
	s.Post("/:sid/advance", h.Advance)
	s.Post("/:sid/retreat", h.Retreat)
	s.Post("/:sid/draft", h.SaveDraft)
	s.Post("/:sid/publish", h.Publish)
	s.Put("/:sid/mode", h.SetMode)

	// Stage endpoints:
	s.Post("/:sid/stages", h.AppendStage)
	s.Put("/:sid/stages/:stageId", h.UpdateStage)
	s.Delete("/:sid/stages/:stageId", h.RemoveStage)
	s.Post("/:sid/stages/:stageId/move-up", h.MoveStageUp)
	s.Post("/:sid/stages/:stageId/move-down", h.MoveStageDown)
	s.Put("/:sid/stages/:stageId/escalation", h.UpdateEscalation)
	s.Post("/:sid/stages/:stageId/assignees", h.AssignActors)
	s.Delete("/:sid/stages/:stageId/assignees/:kind/:actorId", h.UnassignActor)

	d := router.Group("/definitions")
	d.Get("/groups/:groupId", h.GetGroup)
	d.Get("/:id", h.GetDefinition)
	d.Get("/:id/escalation-plan", h.GetEscalationPlan)
	d.Post("/:id/edit", h.EditDefinition)
}

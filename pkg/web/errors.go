package web

import (
	"errors"

	"github.com/dukex/stageflow/pkg/builder"
	"github.com/dukex/stageflow/pkg/directory"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/dukex/stageflow/pkg/services"
	"github.com/dukex/stageflow/pkg/wizard"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// FieldsProblem reports per-field validation messages.
type FieldsProblem struct {
	*problems.Problem

	Fields map[string]string `json:"fields"`
}

// IncompleteStagesProblem lists the stages that block publishing.
type IncompleteStagesProblem struct {
	*problems.Problem

	StageIDs []string `json:"stage_ids"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func fieldsProblem(c fiber.Ctx, fields map[string]string) error {
	problem := FieldsProblem{
		Problem: problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("field_validation").
			WithDetail("one or more fields are invalid"),
		Fields: fields,
	}

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	var (
		fieldErr      *wizard.FieldValidationError
		incompleteErr *wizard.IncompleteStagesError
	)

	switch {
	case errors.As(err, &fieldErr):
		return fieldsProblem(c, fieldErr.Fields)

	case errors.As(err, &incompleteErr):
		problem := IncompleteStagesProblem{
			Problem: problems.NewStatusProblem(422).
				WithInstance(c.Path()).
				WithType("incomplete_stages").
				WithDetail("every stage needs a type, an escalation protocol and at least one assignee"),
			StageIDs: incompleteErr.StageIDs,
		}

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case directory.IsUnknownActor(err):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("unknown_actor").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.Is(err, wizard.ErrSessionClosed):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("session_closed").
			WithDetail("authoring session already ended")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case builder.IsMinimumStagesViolation(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("minimum_stages").
			WithDetail("a definition must retain at least one stage")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("wrong_phase").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, services.ErrSessionNotFound):
		return notFound(c, "session_not_found", "authoring session not found")

	case builder.IsStageNotFound(err):
		return notFound(c, "stage_not_found", "stage not found")

	case persistence.IsPublishedDefinitionNotFound(err):
		return notFound(c, "published_definition_not_found", "published definition not found")

	case persistence.IsDefinitionNotFound(err):
		return notFound(c, "definition_not_found", "definition not found")

	default:
		// Log unexpected errors but don't expose details
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}

// Package main provides the Stageflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/stageflow/pkg/eventbus"
	"github.com/dukex/stageflow/pkg/events"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/dukex/stageflow/pkg/services"
	"github.com/dukex/stageflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	directory   web.Directory
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	directory web.Directory,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		directory:   directory,
		eventBus:    eventBus,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	repo := a.persistence.DefinitionRepository()

	var publisher eventbus.EventPublisher
	if a.eventBus != nil {
		publisher = a.eventBus
	}

	sessions := services.NewSessions(repo, a.directory, publisher, a.tracer, a.logger.With("component", "sessions"))
	definitions := services.NewDefinitions(repo)

	handlers := web.NewAPIHandlers(sessions, definitions, a.directory, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Stageflow API")
	})

	handlers.Register(app)

	return app
}

// Subscribe logs every definition lifecycle event delivered by the event bus.
func (a *API) Subscribe(ctx context.Context) error {
	handler := func(ctx context.Context, event any) error {
		switch e := event.(type) {
		case *events.DefinitionDraftSaved:
			a.logger.InfoContext(ctx, "Definition draft saved",
				"definition_id", e.DefinitionID, "group_id", e.GroupID, "version", e.Version)
		case *events.DefinitionPublished:
			a.logger.InfoContext(ctx, "Definition published",
				"definition_id", e.DefinitionID, "group_id", e.GroupID, "version", e.Version, "name", e.Name)
		}

		return nil
	}

	for _, eventType := range []events.EventType{events.DefinitionDraftSavedEvent, events.DefinitionPublishedEvent} {
		if err := a.eventBus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	return a.eventBus.Subscribe(ctx)
}

func (a *API) Start(ctx context.Context, port int) error {
	if a.eventBus != nil {
		if err := a.Subscribe(ctx); err != nil {
			return err
		}
	}

	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}

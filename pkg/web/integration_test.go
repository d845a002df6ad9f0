//go:build integration

package web_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/dukex/stageflow/pkg/directory"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/otelhelper"
	"github.com/dukex/stageflow/pkg/persistence/postgresql"
	"github.com/dukex/stageflow/pkg/services"
	"github.com/dukex/stageflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "test_stageflow",
				"POSTGRES_USER":     "test_user",
				"POSTGRES_PASSWORD": "test_pass",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test_user:test_pass@%s:%s/test_stageflow?sslmode=disable", host, port.Port())
}

func setupIntegrationApp(t *testing.T, dbURL string) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	persistence, err := postgresql.NewPersistence(context.Background(), logger, dbURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = persistence.Close(context.Background())
	})

	repo := persistence.DefinitionRepository()
	dir := directory.Default()

	handlers := web.NewAPIHandlers(
		services.NewSessions(repo, dir, nil, otelhelper.NewNoopTracer(), logger),
		services.NewDefinitions(repo),
		dir,
		persistence,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	handlers.Register(app)

	return app
}

func TestDefinitionVersioning_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	app := setupIntegrationApp(t, setupTestDB(t))

	state := startProcessFlow(t, app)
	completeStage(t, app, state.ID, state.Definition.Stages[0].ID)

	status, body := call(t, app, http.MethodPost, "/sessions/"+state.ID+"/publish", nil)
	require.Equal(t, http.StatusCreated, status, string(body))
	first := decode[web.StoredResponse](t, body)

	status, body = call(t, app, http.MethodPost, "/definitions/"+first.ID+"/edit", nil)
	require.Equal(t, http.StatusCreated, status, string(body))
	edited := decode[services.SessionState](t, body)

	status, _ = call(t, app, http.MethodPost, "/sessions/"+edited.ID+"/advance", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, app, http.MethodPost, "/sessions/"+edited.ID+"/publish", nil)
	require.Equal(t, http.StatusCreated, status, string(body))
	second := decode[web.StoredResponse](t, body)

	status, body = call(t, app, http.MethodGet, "/definitions/"+first.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.DefinitionStatusUnpublished, decode[models.Definition](t, body).Status)

	status, body = call(t, app, http.MethodGet, "/definitions/groups/"+state.Definition.GroupID, nil)
	require.Equal(t, http.StatusOK, status)

	group := decode[struct {
		PublishedID string              `json:"published_id"`
		Versions    []models.Definition `json:"versions"`
	}](t, body)
	assert.Equal(t, second.ID, group.PublishedID)
	require.Len(t, group.Versions, 2)
	assert.Equal(t, 1, group.Versions[0].Version)
	assert.Equal(t, 2, group.Versions[1].Version)
	assert.Equal(t, first.ID, group.Versions[1].ParentID)
}

package testutil

import (
	"testing"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDefinitionRepositoryContract exercises the behaviour every DefinitionRepository
// implementation shares. newRepo must return an empty repository.
func RunDefinitionRepositoryContract(t *testing.T, newRepo func(t *testing.T) persistence.DefinitionRepository) {
	t.Helper()

	t.Run("save draft creates version 1", func(t *testing.T) {
		repo := newRepo(t)
		definition := CreateTestDefinition()

		id, err := repo.SaveDraft(t.Context(), definition)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		stored, err := repo.GetByID(t.Context(), string(id))
		require.NoError(t, err)
		assert.Equal(t, string(id), stored.ID)
		assert.Equal(t, definition.GroupID, stored.GroupID)
		assert.Equal(t, 1, stored.Version)
		assert.Equal(t, models.DefinitionStatusDraft, stored.Status)
		assert.Equal(t, definition.Name, stored.Name)
		require.Len(t, stored.Stages, 1)
		assert.Equal(t, definition.Stages[0].ID, stored.Stages[0].ID)
		assert.Equal(t, definition.Stages[0].Assignment.Members(), stored.Stages[0].Assignment.Members())
		assert.Nil(t, stored.PublishedAt)
		assert.Empty(t, definition.ID, "caller's value is not modified")
	})

	t.Run("every save is a new version", func(t *testing.T) {
		repo := newRepo(t)
		definition := CreateTestDefinition()

		first, err := repo.SaveDraft(t.Context(), definition)
		require.NoError(t, err)

		definition.Name = "Renamed"
		second, err := repo.SaveDraft(t.Context(), definition)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		original, err := repo.GetByID(t.Context(), string(first))
		require.NoError(t, err)
		assert.Equal(t, "Large transfer review", original.Name, "stored versions are immutable")

		versions, err := repo.ListByGroup(t.Context(), definition.GroupID)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, 1, versions[0].Version)
		assert.Equal(t, 2, versions[1].Version)
		assert.Equal(t, "Renamed", versions[1].Name)
	})

	t.Run("publish supersedes earlier published version", func(t *testing.T) {
		repo := newRepo(t)
		definition := CreateTestDefinition()

		first, err := repo.Publish(t.Context(), definition)
		require.NoError(t, err)

		published, err := repo.GetPublished(t.Context(), definition.GroupID)
		require.NoError(t, err)
		assert.Equal(t, string(first), published.ID)
		assert.Equal(t, models.DefinitionStatusPublished, published.Status)
		require.NotNil(t, published.PublishedAt)

		second, err := repo.Publish(t.Context(), definition)
		require.NoError(t, err)

		published, err = repo.GetPublished(t.Context(), definition.GroupID)
		require.NoError(t, err)
		assert.Equal(t, string(second), published.ID)
		assert.Equal(t, 2, published.Version)

		previous, err := repo.GetByID(t.Context(), string(first))
		require.NoError(t, err)
		assert.Equal(t, models.DefinitionStatusUnpublished, previous.Status)
	})

	t.Run("drafts do not affect the published version", func(t *testing.T) {
		repo := newRepo(t)
		definition := CreateTestDefinition()

		publishedID, err := repo.Publish(t.Context(), definition)
		require.NoError(t, err)

		_, err = repo.SaveDraft(t.Context(), definition)
		require.NoError(t, err)

		published, err := repo.GetPublished(t.Context(), definition.GroupID)
		require.NoError(t, err)
		assert.Equal(t, string(publishedID), published.ID)
	})

	t.Run("groups are independent", func(t *testing.T) {
		repo := newRepo(t)
		first := CreateTestDefinition()
		second := CreateTestDefinition()

		_, err := repo.Publish(t.Context(), first)
		require.NoError(t, err)

		_, err = repo.Publish(t.Context(), second)
		require.NoError(t, err)

		published, err := repo.GetPublished(t.Context(), first.GroupID)
		require.NoError(t, err)
		assert.Equal(t, models.DefinitionStatusPublished, published.Status)
		assert.Equal(t, 1, published.Version)
	})

	t.Run("missing records", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetByID(t.Context(), "0198c2a4-0000-7000-8000-000000000000")
		require.ErrorIs(t, err, persistence.ErrDefinitionNotFound)

		_, err = repo.GetPublished(t.Context(), "0198c2a4-0000-7000-8000-000000000001")
		require.ErrorIs(t, err, persistence.ErrPublishedDefinitionNotFound)

		versions, err := repo.ListByGroup(t.Context(), "0198c2a4-0000-7000-8000-000000000002")
		require.NoError(t, err)
		assert.Empty(t, versions)

		require.NoError(t, repo.Delete(t.Context(), "0198c2a4-0000-7000-8000-000000000003"))
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)

		id, err := repo.SaveDraft(t.Context(), CreateTestDefinition())
		require.NoError(t, err)

		require.NoError(t, repo.Delete(t.Context(), string(id)))

		_, err = repo.GetByID(t.Context(), string(id))
		require.ErrorIs(t, err, persistence.ErrDefinitionNotFound)
	})

	t.Run("nil definition", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.SaveDraft(t.Context(), nil)
		require.ErrorIs(t, err, persistence.ErrDefinitionNil)

		_, err = repo.Publish(t.Context(), nil)
		require.ErrorIs(t, err, persistence.ErrDefinitionNil)
	})
}

package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()

	return writeCatalogFile(t, "directory.json", body)
}

func writeCatalogFile(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	return path
}

func TestLoadFile(t *testing.T) {
	path := writeCatalog(t, `{
		"users": [{"id": "u1", "display_name": "Ada"}],
		"roles": [{"id": "r1", "display_name": "Compliance", "member_count": 3}],
		"branches": [{"id": "br-1", "label": "Lagos"}],
		"departments": [{"id": "dep-1", "label": "Treasury"}],
		"actions": [{"id": "act-1", "label": "Transfer"}]
	}`)

	static, err := LoadFile(path)
	require.NoError(t, err)

	users, err := static.ListAssignableUsers(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []models.ActorRef{models.User("u1", "Ada")}, users)

	roles, err := static.ListAssignableRoles(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []models.ActorRef{models.Role("r1", "Compliance", 3)}, roles)

	branches, err := static.Branches(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []Option{{ID: "br-1", Label: "Lagos"}}, branches)
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeCatalogFile(t, "directory.yaml", `
users:
  - id: u1
    display_name: Ada
roles:
  - id: r1
    display_name: Compliance
    member_count: 3
departments:
  - id: dep-1
    label: Treasury
`)

	static, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []models.ActorRef{models.User("u1", "Ada")}, static.Users)
	assert.Equal(t, []models.ActorRef{models.Role("r1", "Compliance", 3)}, static.Roles)
	assert.Equal(t, []Option{{ID: "dep-1", Label: "Treasury"}}, static.DepartmentOptions)

	_, err = LoadFile(writeCatalogFile(t, "broken.yml", "users: [unterminated"))
	require.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"users": [`},
		{name: "user without id", body: `{"users": [{"display_name": "Ada"}]}`},
		{name: "duplicate role", body: `{"roles": [{"id": "r1"}, {"id": "r1"}]}`},
		{name: "branch without label", body: `{"branches": [{"id": "br-1"}]}`},
		{name: "duplicate action", body: `{"actions": [{"id": "a", "label": "A"}, {"id": "a", "label": "B"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeCatalog(t, tt.body))
			require.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolve(t *testing.T) {
	dir := Default()

	refs, err := Resolve(t.Context(), dir, []models.ActorKey{
		{Kind: models.ActorKindRole, ID: "r-treasury"},
		{Kind: models.ActorKindUser, ID: "u-ada"},
	})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, models.Role("r-treasury", "Treasury Desk", 6), refs[0])
	assert.Equal(t, models.User("u-ada", "Ada Obi"), refs[1])
}

func TestResolve_UnknownActors(t *testing.T) {
	_, err := Resolve(t.Context(), Default(), []models.ActorKey{
		{Kind: models.ActorKindUser, ID: "u-ada"},
		{Kind: models.ActorKindUser, ID: "u-ghost"},
		{Kind: models.ActorKindRole, ID: "u-ada"},
	})
	require.ErrorIs(t, err, ErrUnknownActor)
	assert.True(t, IsUnknownActor(err))

	var unknown *UnknownActorError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []models.ActorKey{
		{Kind: models.ActorKindUser, ID: "u-ghost"},
		{Kind: models.ActorKindRole, ID: "u-ada"},
	}, unknown.Keys)
}

type failingDirectory struct{}

func (failingDirectory) ListAssignableUsers(context.Context) ([]models.ActorRef, error) {
	return nil, errors.New("directory offline")
}

func (failingDirectory) ListAssignableRoles(context.Context) ([]models.ActorRef, error) {
	return []models.ActorRef{}, nil
}

func TestResolve_DirectoryFailure(t *testing.T) {
	_, err := Resolve(t.Context(), failingDirectory{}, []models.ActorKey{{Kind: models.ActorKindUser, ID: "u1"}})
	require.Error(t, err)
	assert.False(t, IsUnknownActor(err))

	refs, err := Resolve(t.Context(), failingDirectory{}, []models.ActorKey{})
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestStatic_ReturnsCopies(t *testing.T) {
	dir := Default()

	users, err := dir.ListAssignableUsers(t.Context())
	require.NoError(t, err)
	users[0].DisplayName = "changed"

	assert.Equal(t, "Ada Obi", dir.Users[0].DisplayName)
	require.NoError(t, dir.Validate())
}

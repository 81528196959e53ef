package postgres_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gametablehq/gametable/internal/storage/postgres"
	"github.com/gametablehq/gametable/internal/testutil"
)

func TestCharacterRepository_CreateAndGet(t *testing.T) {
	repo := postgres.NewCharacterRepository(testutil.NewPool(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, postgres.Character{
		OwnerID: "user-1",
		Name:    "Zara",
		Class:   "rogue",
		Level:   3,
		Sheet:   json.RawMessage(`{"dex":16,"hp":21}`),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 3, created.Level)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Zara", got.Name)
	assert.JSONEq(t, `{"dex":16,"hp":21}`, string(got.Sheet))
}

func TestCharacterRepository_CreateDefaults(t *testing.T) {
	repo := postgres.NewCharacterRepository(testutil.NewPool(t))

	created, err := repo.Create(context.Background(), postgres.Character{
		OwnerID: "user-1",
		Name:    "Blank",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created.Level, "level defaults to 1")
	assert.JSONEq(t, `{}`, string(created.Sheet), "sheet defaults to an empty object")
}

func TestCharacterRepository_Exists(t *testing.T) {
	repo := postgres.NewCharacterRepository(testutil.NewPool(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, postgres.Character{OwnerID: "user-1", Name: "Checkme"})
	require.NoError(t, err)

	exists, err := repo.CharacterExists(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.CharacterExists(ctx, "no-such-character")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCharacterRepository_ListByOwner(t *testing.T) {
	repo := postgres.NewCharacterRepository(testutil.NewPool(t))
	ctx := context.Background()

	names := []string{"First", "Second", "Third"}
	for _, name := range names {
		_, err := repo.Create(ctx, postgres.Character{OwnerID: "owner-list", Name: name})
		require.NoError(t, err)
	}

	chars, err := repo.ListByOwner(ctx, "owner-list")
	require.NoError(t, err)
	require.Len(t, chars, 3)
	assert.Equal(t, "First", chars[0].Name, "oldest first")
}

func TestCharacterRepository_Update(t *testing.T) {
	repo := postgres.NewCharacterRepository(testutil.NewPool(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, postgres.Character{OwnerID: "user-1", Name: "Zara", Level: 3})
	require.NoError(t, err)

	created.Level = 4
	created.Sheet = json.RawMessage(`{"dex":17}`)
	require.NoError(t, repo.Update(ctx, created))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Level)
	assert.JSONEq(t, `{"dex":17}`, string(got.Sheet))
}

func TestCharacterRepository_Delete(t *testing.T) {
	repo := postgres.NewCharacterRepository(testutil.NewPool(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, postgres.Character{OwnerID: "user-1", Name: "Doomed"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, postgres.ErrCharacterNotFound)
}

package users

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	created, err := r.Create(ctx, alice())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = r.Create(ctx, alice())
	require.ErrorIs(t, err, common.ErrorAlreadyExists)

	byEmail, err := r.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byEmail.FirstName = "Mutated"
	again, err := r.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.FirstName, "returned values must be copies")

	again.Email = "alice2@example.com"
	updated, err := r.Update(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, "alice2@example.com", updated.Email)

	_, err = r.GetByEmail(ctx, "alice@example.com")
	require.ErrorIs(t, err, common.ErrorNotFound, "old email index entry must be dropped")

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, r.Delete(ctx, created.ID))
	require.ErrorIs(t, r.Delete(ctx, created.ID), common.ErrorNotFound)
	_, err = r.GetByID(ctx, created.ID)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_UpdateEmailConflict(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	a, err := r.Create(ctx, alice())
	require.NoError(t, err)
	b := alice()
	b.Email = "bob@example.com"
	_, err = r.Create(ctx, b)
	require.NoError(t, err)

	a.Email = "bob@example.com"
	_, err = r.Update(ctx, a)
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestMemoryRepository_RefreshHash(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	u, err := r.Create(ctx, alice())
	require.NoError(t, err)

	h, err := r.GetRefreshHash(u.ID)
	require.NoError(t, err)
	assert.Empty(t, h)

	r.SetRefreshHash(u.ID, "h1")
	assert.False(t, r.CompareAndSwapRefreshHash(u.ID, "other", "h2"))
	assert.True(t, r.CompareAndSwapRefreshHash(u.ID, "h1", "h2"))
	assert.False(t, r.CompareAndSwapRefreshHash(u.ID, "h1", "h3"), "stale expected must lose")

	h, err = r.GetRefreshHash(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", h)

	_, err = r.GetRefreshHash("missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
	r.SetRefreshHash("missing", "x")
}

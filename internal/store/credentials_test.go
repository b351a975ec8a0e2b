package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/diecompare/internal/models"
)

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	c := NewCredentials()

	require.NoError(t, c.Create(ctx, models.Credential{Username: "zoe"}))
	require.NoError(t, c.Create(ctx, models.Credential{Username: "amy", Name: "Amy"}))
	assert.ErrorIs(t, c.Create(ctx, models.Credential{Username: "amy"}), models.ErrDuplicate)

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "amy", list[0].Username)

	got, err := c.Get(ctx, "amy")
	require.NoError(t, err)
	assert.Equal(t, "Amy", got.Name)

	_, err = c.Get(ctx, "bob")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, c.Delete(ctx, "zoe"))
	assert.ErrorIs(t, c.Delete(ctx, "zoe"), models.ErrNotFound)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

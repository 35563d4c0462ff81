package twin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureExistingShortCircuits(t *testing.T) {
	id, created, err := Ensure(context.Background(), "42",
		func(context.Context) (string, error) {
			t.Fatal("search should not run when the id is known")
			return "", nil
		},
		func(context.Context) (string, error) {
			t.Fatal("create should not run when the id is known")
			return "", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.False(t, created)
}

func TestEnsureSearchHitSkipsCreate(t *testing.T) {
	id, created, err := Ensure(context.Background(), "",
		func(context.Context) (string, error) { return "7", nil },
		func(context.Context) (string, error) {
			t.Fatal("create should not run after a search hit")
			return "", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "7", id)
	assert.False(t, created)
}

func TestEnsureCreatesOnMiss(t *testing.T) {
	id, created, err := Ensure(context.Background(), "",
		func(context.Context) (string, error) { return "", nil },
		func(context.Context) (string, error) { return "99", nil })
	require.NoError(t, err)
	assert.Equal(t, "99", id)
	assert.True(t, created)
}

func TestEnsurePropagatesErrors(t *testing.T) {
	searchErr := errors.New("remote down")
	_, _, err := Ensure(context.Background(), "",
		func(context.Context) (string, error) { return "", searchErr },
		func(context.Context) (string, error) { return "x", nil })
	assert.ErrorIs(t, err, searchErr)

	createErr := errors.New("create rejected")
	_, _, err = Ensure(context.Background(), "",
		func(context.Context) (string, error) { return "", nil },
		func(context.Context) (string, error) { return "", createErr })
	assert.ErrorIs(t, err, createErr)
}

package gmail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capture/internal"
	"capture/internal/config"
)

func TestSweepRequiresLinkedAccount(t *testing.T) {
	e := NewEngine(config.Config{})

	_, err := e.Sweep(context.Background(), "nobody@gmail.com", 5)
	require.Error(t, err)
	assert.Equal(t, internal.KindNoCredentials, internal.KindOf(err))
}

func TestSweepZeroWindowIsEmpty(t *testing.T) {
	e := NewEngine(config.Config{})
	e.linked["u@gmail.com"] = true

	// A zero-day window never touches the API; the stream completes empty.
	items, err := e.Sweep(context.Background(), "u@gmail.com", 0)
	require.NoError(t, err)
	for range items {
		t.Fatal("zero-day sweep must emit nothing")
	}
}

func TestLogoutScopes(t *testing.T) {
	e := NewEngine(config.Config{})
	e.linked["a@gmail.com"] = true
	e.linked["b@gmail.com"] = true

	require.NoError(t, e.Logout(context.Background(), "A@gmail.com"))
	linked, err := e.Linked(context.Background())
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "b@gmail.com", linked[0].Username)

	require.NoError(t, e.Logout(context.Background(), ""))
	linked, err = e.Linked(context.Background())
	require.NoError(t, err)
	assert.Empty(t, linked)
}

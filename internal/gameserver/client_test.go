package gameserver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gametablehq/gametable/internal/gameserver"
)

func TestClient_PushAndDrain(t *testing.T) {
	c := gameserver.NewClient("user-1", "Alice", "player", 4)

	require.NoError(t, c.Push(gameserver.Event{Type: "a"}))
	require.NoError(t, c.Push(gameserver.Event{Type: "b"}))

	assert.Equal(t, "a", (<-c.Events()).Type)
	assert.Equal(t, "b", (<-c.Events()).Type)
}

func TestClient_PushAfterCloseFails(t *testing.T) {
	c := gameserver.NewClient("user-1", "Alice", "player", 4)
	c.Close()

	err := c.Push(gameserver.Event{Type: "a"})
	require.Error(t, err, "push on a closed handle must fail")
	assert.True(t, c.IsClosed())
}

func TestClient_PushFullBufferFails(t *testing.T) {
	c := gameserver.NewClient("user-1", "Alice", "player", 1)

	require.NoError(t, c.Push(gameserver.Event{Type: "a"}))
	err := c.Push(gameserver.Event{Type: "b"})
	require.Error(t, err, "push past the buffer must fail, not block")
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c := gameserver.NewClient("user-1", "Alice", "player", 4)
	c.Close()
	c.Close()

	_, open := <-c.Events()
	assert.False(t, open, "event channel must be closed")
}

func TestClient_DistinctConnectionIDs(t *testing.T) {
	a := gameserver.NewClient("user-1", "Alice", "player", 4)
	b := gameserver.NewClient("user-1", "Alice", "player", 4)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestRoster_ReplaceSupersedes(t *testing.T) {
	roster := gameserver.NewRoster()

	first := gameserver.NewClient("user-1", "Alice", "player", 4)
	second := gameserver.NewClient("user-1", "Alice", "player", 4)

	roster.Replace(first)
	roster.Replace(second)

	got, ok := roster.Get("user-1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.True(t, first.IsClosed(), "superseded connection must be closed")
	assert.Equal(t, 1, roster.Count())
}

func TestRoster_RemoveIfGuardsIdentity(t *testing.T) {
	roster := gameserver.NewRoster()

	old := gameserver.NewClient("user-1", "Alice", "player", 4)
	current := gameserver.NewClient("user-1", "Alice", "player", 4)
	roster.Replace(old)
	roster.Replace(current)

	assert.False(t, roster.RemoveIf("user-1", old), "stale handle must not evict its replacement")
	_, ok := roster.Get("user-1")
	assert.True(t, ok)

	assert.True(t, roster.RemoveIf("user-1", current))
	_, ok = roster.Get("user-1")
	assert.False(t, ok)
}

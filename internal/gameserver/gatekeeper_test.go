package gameserver_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gametablehq/gametable/internal/auth"
	"github.com/gametablehq/gametable/internal/game/session"
	"github.com/gametablehq/gametable/internal/gameserver"
)

// fakeVerifier maps literal token strings to claims.
type fakeVerifier struct {
	claims map[string]auth.Claims
}

func (f fakeVerifier) VerifyToken(_ context.Context, token string) (auth.Claims, error) {
	c, ok := f.claims[token]
	if !ok {
		return auth.Claims{}, fmt.Errorf("%w: unknown token", auth.ErrAuthentication)
	}
	return c, nil
}

// fakeUsers is an in-memory auth.UserGetter.
type fakeUsers struct {
	users map[string]auth.User
}

func (f fakeUsers) GetUser(_ context.Context, id string) (auth.User, error) {
	u, ok := f.users[id]
	if !ok {
		return auth.User{}, fmt.Errorf("%w: %s", auth.ErrUserNotFound, id)
	}
	return u, nil
}

func newGatekeeper(t *testing.T) (*gameserver.Gatekeeper, *session.Registry, *gameserver.Roster) {
	t.Helper()
	logger := zap.NewNop()
	registry := session.NewRegistry(1, 6, logger)
	roster := gameserver.NewRoster()

	verifier := fakeVerifier{claims: map[string]auth.Claims{
		"token-alice": {UserID: "alice", Role: "player"},
		"token-bob":   {UserID: "bob", Role: "player"},
		"token-ghost": {UserID: "ghost", Role: "player"},
		"token-idle":  {UserID: "idle", Role: "player"},
	}}
	users := fakeUsers{users: map[string]auth.User{
		"alice": {ID: "alice", Name: "Alice", Role: "player", Active: true},
		"bob":   {ID: "bob", Name: "Bob", Role: "player", Active: true},
		"idle":  {ID: "idle", Name: "Idle", Role: "player", Active: false},
	}}

	return gameserver.NewGatekeeper(verifier, users, registry, roster, 16, logger), registry, roster
}

func TestGatekeeper_Authenticate(t *testing.T) {
	gate, _, roster := newGatekeeper(t)

	c, err := gate.Authenticate(context.Background(), "token-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", c.UserID())
	assert.Equal(t, "Alice", c.Name())

	got, ok := roster.Get("alice")
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestGatekeeper_RejectsBadToken(t *testing.T) {
	gate, _, roster := newGatekeeper(t)

	_, err := gate.Authenticate(context.Background(), "nope")
	require.ErrorIs(t, err, auth.ErrAuthentication)
	assert.Equal(t, 0, roster.Count(), "failed auth must leave no trace")
}

func TestGatekeeper_RejectsUnknownUser(t *testing.T) {
	gate, _, _ := newGatekeeper(t)

	// Token verifies but no user record backs it.
	_, err := gate.Authenticate(context.Background(), "token-ghost")
	require.ErrorIs(t, err, auth.ErrAuthentication)
}

func TestGatekeeper_RejectsInactiveUser(t *testing.T) {
	gate, _, _ := newGatekeeper(t)

	_, err := gate.Authenticate(context.Background(), "token-idle")
	require.ErrorIs(t, err, auth.ErrAuthentication)
}

func TestGatekeeper_ReconnectSupersedes(t *testing.T) {
	gate, _, roster := newGatekeeper(t)

	first, err := gate.Authenticate(context.Background(), "token-alice")
	require.NoError(t, err)
	second, err := gate.Authenticate(context.Background(), "token-alice")
	require.NoError(t, err)

	assert.True(t, first.IsClosed(), "old connection must be closed on reconnect")
	got, _ := roster.Get("alice")
	assert.Same(t, second, got)
}

func TestGatekeeper_DisconnectCleansUpSessions(t *testing.T) {
	gate, registry, roster := newGatekeeper(t)

	alice, err := gate.Authenticate(context.Background(), "token-alice")
	require.NoError(t, err)
	bob, err := gate.Authenticate(context.Background(), "token-bob")
	require.NoError(t, err)

	room, err := registry.Create(session.CreateParams{
		Name:        "Night Raid",
		Mode:        session.ModeMultiplayer,
		CreatorID:   "alice",
		CreatorName: "Alice",
	})
	require.NoError(t, err)
	_, _, err = room.Join("bob", "Bob", "", "")
	require.NoError(t, err)

	gate.Disconnect(bob)

	_, stillThere := room.Participant("bob")
	assert.False(t, stillThere, "disconnect must remove the participant")
	_, ok := roster.Get("bob")
	assert.False(t, ok)

	// The remaining participant is told about the departure.
	select {
	case ev := <-alice.Events():
		assert.Equal(t, gameserver.EvtParticipantLeft, ev.Type)
	default:
		t.Fatal("expected a participant_left event for alice")
	}
}

func TestGatekeeper_DisconnectDeletesEmptyRoom(t *testing.T) {
	gate, registry, _ := newGatekeeper(t)

	alice, err := gate.Authenticate(context.Background(), "token-alice")
	require.NoError(t, err)

	room, err := registry.Create(session.CreateParams{
		Name:        "Short Lived",
		Mode:        session.ModeMultiplayer,
		CreatorID:   "alice",
		CreatorName: "Alice",
	})
	require.NoError(t, err)

	gate.Disconnect(alice)

	_, err = registry.Get(room.ID())
	require.ErrorIs(t, err, session.ErrNotFound, "emptied room must be evicted")
}

func TestGatekeeper_DisconnectIsIdempotent(t *testing.T) {
	gate, _, _ := newGatekeeper(t)

	alice, err := gate.Authenticate(context.Background(), "token-alice")
	require.NoError(t, err)

	gate.Disconnect(alice)
	gate.Disconnect(alice)
	gate.Disconnect(nil)
}

func TestGatekeeper_StaleDisconnectKeepsSessions(t *testing.T) {
	gate, registry, roster := newGatekeeper(t)

	old, err := gate.Authenticate(context.Background(), "token-alice")
	require.NoError(t, err)

	room, err := registry.Create(session.CreateParams{
		Name:        "Long Haul",
		Mode:        session.ModeMultiplayer,
		CreatorID:   "alice",
		CreatorName: "Alice",
	})
	require.NoError(t, err)

	// Reconnect, then the stale connection's teardown fires.
	fresh, err := gate.Authenticate(context.Background(), "token-alice")
	require.NoError(t, err)
	gate.Disconnect(old)

	_, stillThere := room.Participant("alice")
	assert.True(t, stillThere, "stale teardown must not evict the reconnected user")
	got, ok := roster.Get("alice")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/gametablehq/gametable/internal/game/session"
)

func newRegistry() *session.Registry {
	return session.NewRegistry(1, 6, zap.NewNop())
}

func createRoom(t *testing.T, reg *session.Registry, p session.CreateParams) *session.Room {
	t.Helper()
	if p.CreatorID == "" {
		p.CreatorID = "creator"
		p.CreatorName = "Creator"
	}
	if p.Mode == "" {
		p.Mode = session.ModeMultiplayer
	}
	if p.RulesetID == "" {
		p.RulesetID = "dnd5e"
	}
	room, err := reg.Create(p)
	require.NoError(t, err)
	return room
}

func TestCreate_CreatorIsGameMaster(t *testing.T) {
	reg := newRegistry()
	room := createRoom(t, reg, session.CreateParams{CampaignID: "camp-1", Name: "Friday Night"})

	p, ok := room.Participant("creator")
	require.True(t, ok)
	assert.Equal(t, session.RoleGameMaster, p.Role)
	assert.Equal(t, session.StatusWaiting, room.Status())
}

func TestCreate_AIGameMasterForcesPlayers(t *testing.T) {
	reg := newRegistry()
	room := createRoom(t, reg, session.CreateParams{AIGameMaster: true})

	p, ok := room.Participant("creator")
	require.True(t, ok)
	assert.Equal(t, session.RolePlayer, p.Role, "aiGM rooms have no human game master")

	joined, _, err := room.Join("u2", "Player Two", "", "")
	require.NoError(t, err)
	assert.Equal(t, session.RolePlayer, joined.Role)
	assert.Empty(t, room.GameMasterIDs())
}

func TestJoin_SecondUserIsPlayer(t *testing.T) {
	reg := newRegistry()
	room := createRoom(t, reg, session.CreateParams{})

	p, _, err := room.Join("u2", "Player Two", "char-9", "")
	require.NoError(t, err)
	assert.Equal(t, session.RolePlayer, p.Role, "room already has a game master")
	assert.Equal(t, "char-9", p.CharacterID)
	assert.ElementsMatch(t, []string{"creator"}, room.GameMasterIDs())
}

func TestJoin_SoloRestrictedToCreator(t *testing.T) {
	reg := newRegistry()
	room := createRoom(t, reg, session.CreateParams{Mode: session.ModeSolo})

	// A solo room sits at capacity once the creator is seated; the
	// rejection must still name the mode restriction, not the capacity.
	_, _, err := room.Join("intruder", "Intruder", "", "")
	require.ErrorIs(t, err, session.ErrModeRestricted)
	require.NotErrorIs(t, err, session.ErrSessionFull)

	// The creator can rejoin their own solo room.
	_, _, err = room.Join("creator", "Creator", "char-1", "")
	require.NoError(t, err)
}

func TestJoin_CapacityEnforced(t *testing.T) {
	reg := newRegistry()
	room := createRoom(t, reg, session.CreateParams{MaxPlayers: 2})

	_, _, err := room.Join("u2", "Two", "", "")
	require.NoError(t, err)

	_, _, err = room.Join("u3", "Three", "", "")
	require.ErrorIs(t, err, session.ErrSessionFull)
	assert.Len(t, room.Participants(), 2, "capacity must never be exceeded")
}

// TestJoin_Capacity_Property verifies that no interleaving of joins ever
// exceeds capacity and that every rejection is ErrSessionFull.
func TestJoin_Capacity_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(2, 6).Draw(rt, "capacity")
		joins := rapid.IntRange(0, 12).Draw(rt, "joins")

		reg := newRegistry()
		room, err := reg.Create(session.CreateParams{
			Mode: session.ModeMultiplayer, MaxPlayers: capacity,
			CreatorID: "creator", CreatorName: "Creator", RulesetID: "dnd5e",
		})
		require.NoError(rt, err)

		admitted := 1 // creator
		for i := 0; i < joins; i++ {
			_, _, err := room.Join(rapid.StringMatching(`u[0-9]{4}`).Draw(rt, "uid"), "P", "", "")
			if err != nil {
				assert.ErrorIs(rt, err, session.ErrSessionFull)
			} else {
				admitted++
			}
			assert.LessOrEqual(rt, len(room.Participants()), capacity)
		}
		assert.LessOrEqual(rt, admitted, capacity)
	})
}

func TestJoin_PrivateRoomInvite(t *testing.T) {
	reg := newRegistry()
	room := createRoom(t, reg, session.CreateParams{Private: true, InviteCode: "sekrit"})

	_, _, err := room.Join("u2", "Two", "", "wrong")
	require.ErrorIs(t, err, session.ErrBadInvite)

	_, _, err = room.Join("u2", "Two", "", "sekrit")
	require.NoError(t, err)
}

func TestCreate_PrivateRoomRequiresInviteCode(t *testing.T) {
	reg := newRegistry()
	_, err := reg.Create(session.CreateParams{
		Mode: session.ModeMultiplayer, Private: true,
		CreatorID: "creator", CreatorName: "Creator",
	})
	require.ErrorIs(t, err, session.ErrBadInvite)
}

func TestJoin_EndedRoomRejected(t *testing.T) {
	reg := newRegistry()
	room := createRoom(t, reg, session.CreateParams{})
	room.End()

	_, _, err := room.Join("u2", "Two", "", "")
	require.ErrorIs(t, err, session.ErrSessionEnded)
}

func TestJoin_RejoinIsIdempotent(t *testing.T) {
	reg := newRegistry()
	room := createRoom(t, reg, session.CreateParams{})

	_, created, err := room.Join("u2", "Two", "", "")
	require.NoError(t, err)
	assert.True(t, created)

	p, created, err := room.Join("u2", "Two", "char-3", "")
	require.NoError(t, err)
	assert.False(t, created, "a rejoin is not a new participant")
	assert.Equal(t, "char-3", p.CharacterID, "rejoin refreshes the character binding")
	assert.Len(t, room.Participants(), 2)
}

func TestLeave_NonParticipantIsNoOp(t *testing.T) {
	reg := newRegistry()
	room := createRoom(t, reg, session.CreateParams{})

	removed, remaining := room.Leave("ghost")
	assert.False(t, removed)
	assert.Equal(t, 1, remaining)

	// Twice in a row stays safe.
	removed, _ = room.Leave("ghost")
	assert.False(t, removed)
}

func TestStatusTransitions(t *testing.T) {
	reg := newRegistry()
	room := createRoom(t, reg, session.CreateParams{})

	room.Touch()
	assert.Equal(t, session.StatusActive, room.Status(), "first gameplay command activates a waiting room")

	require.NoError(t, room.Pause())
	assert.Equal(t, session.StatusPaused, room.Status())
	require.ErrorIs(t, room.Pause(), session.ErrInvalidTransition)

	require.NoError(t, room.Resume())
	assert.Equal(t, session.StatusActive, room.Status())
	require.ErrorIs(t, room.Resume(), session.ErrInvalidTransition)

	room.End()
	require.ErrorIs(t, room.Pause(), session.ErrSessionEnded)
	require.ErrorIs(t, room.Resume(), session.ErrSessionEnded)
}

// Package session provides the authoritative in-memory state of live
// tabletop sessions: rooms, participants, combat encounters, and the
// registry that owns room creation and eviction.
package session

// Role is the closed set of participant roles within a session.
type Role string

const (
	RolePlayer     Role = "player"
	RoleGameMaster Role = "game-master"
	RoleAdmin      Role = "admin"
)

// IsGameMaster reports whether this role carries game-master authority
// (starting/ending combat, receiving whispers and secret rolls).
func (r Role) IsGameMaster() bool {
	return r == RoleGameMaster
}

// CanModerate reports whether this role may run moderation commands:
// combat control, pausing, and ending the session.
func (r Role) CanModerate() bool {
	return r == RoleGameMaster || r == RoleAdmin
}

// Valid reports whether r is one of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RolePlayer, RoleGameMaster, RoleAdmin:
		return true
	}
	return false
}

// Mode is the session participation mode.
type Mode string

const (
	ModeSolo        Mode = "solo"
	ModeMultiplayer Mode = "multiplayer"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSolo || m == ModeMultiplayer
}

// Status is the session lifecycle status.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusEnded   Status = "ended"
)

// Participant is one user's membership in a session room.
type Participant struct {
	// UserID is the authenticated user identifier.
	UserID string
	// Name is the display name shown to other participants.
	Name string
	// Role is the participant's role within this room.
	Role Role
	// CharacterID is the optional bound character; empty when none.
	CharacterID string
}

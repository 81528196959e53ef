package session

import "errors"

// Sentinel errors surfaced to the command boundary. Each maps to a
// structured error event on the originating connection; none of them is
// fatal to a room or to other connections.
var (
	// ErrNotFound reports an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrSessionEnded reports a join or command against an ended session.
	ErrSessionEnded = errors.New("session has ended")
	// ErrSessionFull reports a join against a session at capacity.
	ErrSessionFull = errors.New("session is full")
	// ErrBadInvite reports a private session join with a wrong invite code.
	ErrBadInvite = errors.New("invalid invite code")
	// ErrModeRestricted reports a solo session join by a non-creator.
	ErrModeRestricted = errors.New("solo session is restricted to its creator")
	// ErrForbidden reports a game-master-only action by a non-game-master.
	ErrForbidden = errors.New("game master role required")
	// ErrNoCombat reports a combat command with no active encounter.
	ErrNoCombat = errors.New("no active combat encounter")
	// ErrInvalidTransition reports a pause/resume against the wrong status.
	ErrInvalidTransition = errors.New("invalid session status transition")
)

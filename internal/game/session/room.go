package session

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Room is the authoritative state of one live session. All methods are safe
// for concurrent use; a single mutex serializes every mutation of the
// participant map and the embedded combat encounter, which gives the room
// single-writer semantics.
//
// Invariant: in solo mode only the creator ever holds a Participant entry.
// Invariant: exactly one participant holds the game-master role unless the
// AI game master is enabled, in which case every participant (creator
// included) is a player.
// Invariant: len(participants) never exceeds capacity.
type Room struct {
	mu sync.Mutex

	id         string
	campaignID string
	name       string
	creatorID  string
	mode       Mode
	capacity   int
	private    bool
	inviteHash []byte
	rulesetID  string
	aiGM       bool

	status       Status
	lastActivity time.Time
	participants map[string]*Participant
	encounter    Encounter
}

// Info is an immutable snapshot of room metadata for outbound payloads.
type Info struct {
	ID           string `json:"id"`
	CampaignID   string `json:"campaignId"`
	Name         string `json:"name"`
	CreatorID    string `json:"creatorId"`
	Mode         Mode   `json:"mode"`
	Capacity     int    `json:"maxPlayers"`
	Private      bool   `json:"isPrivate"`
	RulesetID    string `json:"ruleset"`
	AIGameMaster bool   `json:"aiGMEnabled"`
	Status       Status `json:"status"`
	Participants int    `json:"participantCount"`
}

// newRoom constructs a Room with the creator as its sole participant. Only
// the Registry creates rooms.
//
// Precondition: id, creatorID, and creatorName must be non-empty; mode must
// be valid; capacity >= 1. inviteCode is hashed and retained only for
// private rooms.
// Postcondition: status is waiting; the creator holds game-master unless
// aiGM is set, then player.
func newRoom(id, campaignID, name, creatorID, creatorName string, mode Mode, capacity int, private bool, inviteCode, rulesetID string, aiGM bool) (*Room, error) {
	r := &Room{
		id:           id,
		campaignID:   campaignID,
		name:         name,
		creatorID:    creatorID,
		mode:         mode,
		capacity:     capacity,
		private:      private,
		rulesetID:    rulesetID,
		aiGM:         aiGM,
		status:       StatusWaiting,
		lastActivity: time.Now(),
		participants: make(map[string]*Participant),
	}

	if private {
		if inviteCode == "" {
			return nil, ErrBadInvite
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(inviteCode), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing invite code: %w", err)
		}
		r.inviteHash = hash
	}

	creatorRole := RoleGameMaster
	if aiGM {
		creatorRole = RolePlayer
	}
	r.participants[creatorID] = &Participant{
		UserID: creatorID,
		Name:   creatorName,
		Role:   creatorRole,
	}

	return r, nil
}

// ID returns the session identifier.
func (r *Room) ID() string { return r.id }

// Mode returns the session participation mode.
func (r *Room) Mode() Mode { return r.mode }

// RulesetID returns the game system this room resolves dice under.
func (r *Room) RulesetID() string { return r.rulesetID }

// AIGameMaster reports whether the AI game master is enabled.
func (r *Room) AIGameMaster() bool { return r.aiGM }

// Status returns the current lifecycle status.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// LastActivity returns the time of the last state-changing command.
func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// Snapshot returns the room metadata for outbound payloads.
func (r *Room) Snapshot() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{
		ID:           r.id,
		CampaignID:   r.campaignID,
		Name:         r.name,
		CreatorID:    r.creatorID,
		Mode:         r.mode,
		Capacity:     r.capacity,
		Private:      r.private,
		RulesetID:    r.rulesetID,
		AIGameMaster: r.aiGM,
		Status:       r.status,
		Participants: len(r.participants),
	}
}

// Join adds a participant to the room, enforcing every admission rule:
// ended sessions reject joins, solo rooms admit only their creator, capacity
// is never exceeded, and private rooms verify the invite code. The solo
// check runs before the capacity check because solo rooms sit at capacity
// the moment their creator is seated. A user who is already a participant
// rejoins in place (the character binding is refreshed) so a reconnect is
// not an error.
//
// Postcondition: on success the returned Participant is registered in the
// room, the role invariant holds, and last-activity is updated; created
// reports whether the participant is new rather than a rejoin.
func (r *Room) Join(userID, name, characterID, inviteCode string) (p Participant, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusEnded {
		return Participant{}, false, ErrSessionEnded
	}

	if existing, ok := r.participants[userID]; ok {
		if characterID != "" {
			existing.CharacterID = characterID
		}
		r.lastActivity = time.Now()
		return *existing, false, nil
	}

	if r.mode == ModeSolo && userID != r.creatorID {
		return Participant{}, false, ErrModeRestricted
	}
	if len(r.participants) >= r.capacity {
		return Participant{}, false, ErrSessionFull
	}
	if r.private {
		if err := bcrypt.CompareHashAndPassword(r.inviteHash, []byte(inviteCode)); err != nil {
			return Participant{}, false, ErrBadInvite
		}
	}

	role := RolePlayer
	if !r.aiGM && !r.hasGameMasterLocked() {
		role = RoleGameMaster
	}

	entry := &Participant{
		UserID:      userID,
		Name:        name,
		Role:        role,
		CharacterID: characterID,
	}
	r.participants[userID] = entry
	r.lastActivity = time.Now()
	return *entry, true, nil
}

// Leave removes the participant for userID. Calling it for a user who is
// not a participant is a safe no-op, so disconnect cleanup can race with an
// explicit leave.
//
// Postcondition: Returns whether a participant was removed and how many
// remain.
func (r *Room) Leave(userID string) (removed bool, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[userID]; ok {
		delete(r.participants, userID)
		removed = true
		r.lastActivity = time.Now()
	}
	return removed, len(r.participants)
}

// Participant returns the participant entry for userID.
func (r *Room) Participant(userID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Participants returns a snapshot of all participants.
func (r *Room) Participants() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	return out
}

// ParticipantIDs returns the user ids of all participants.
func (r *Room) ParticipantIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.participants))
	for id := range r.participants {
		out = append(out, id)
	}
	return out
}

// GameMasterIDs returns the user ids of all participants holding the
// game-master role. Empty when the AI game master is enabled.
func (r *Room) GameMasterIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, p := range r.participants {
		if p.Role.IsGameMaster() {
			out = append(out, id)
		}
	}
	return out
}

// CanModerate reports whether userID may run moderation commands in this
// room. Game masters and admins moderate; when the AI game master is
// enabled nobody holds the game-master role, so the creator moderates.
func (r *Room) CanModerate(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return false
	}
	if p.Role.CanModerate() {
		return true
	}
	return r.aiGM && userID == r.creatorID
}

// Empty reports whether the room has no participants.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) == 0
}

func (r *Room) hasGameMasterLocked() bool {
	for _, p := range r.participants {
		if p.Role.IsGameMaster() {
			return true
		}
	}
	return false
}

// Touch marks the room active: it updates last-activity and promotes a
// waiting room to active on its first gameplay command.
func (r *Room) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivity = time.Now()
	if r.status == StatusWaiting {
		r.status = StatusActive
	}
}

// Pause transitions an active or waiting room to paused.
func (r *Room) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case StatusEnded:
		return ErrSessionEnded
	case StatusPaused:
		return fmt.Errorf("%w: already paused", ErrInvalidTransition)
	}
	r.status = StatusPaused
	r.lastActivity = time.Now()
	return nil
}

// Resume transitions a paused room back to active.
func (r *Room) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusEnded {
		return ErrSessionEnded
	}
	if r.status != StatusPaused {
		return fmt.Errorf("%w: not paused", ErrInvalidTransition)
	}
	r.status = StatusActive
	r.lastActivity = time.Now()
	return nil
}

// End marks the room ended. Idempotent.
func (r *Room) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusEnded
	r.lastActivity = time.Now()
}

// StartCombat begins a combat encounter, replacing any running one.
// Authorization (game-master only) is enforced at the command boundary.
//
// Precondition: entries must be non-empty.
// Postcondition: Returns the combatants in authoritative turn order.
func (r *Room) StartCombat(entries []Combatant) ([]Combatant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusEnded {
		return nil, ErrSessionEnded
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("start combat: no combatants")
	}
	r.encounter.Start(entries)
	r.lastActivity = time.Now()
	if r.status == StatusWaiting {
		r.status = StatusActive
	}
	return r.encounter.Combatants(), nil
}

// EndCombat clears the encounter.
func (r *Room) EndCombat() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.encounter.Active() {
		return ErrNoCombat
	}
	r.encounter.End()
	r.lastActivity = time.Now()
	return nil
}

// CombatActive reports whether an encounter is running.
func (r *Room) CombatActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.encounter.Active()
}

// Combatants returns the encounter's authoritative turn order.
func (r *Room) Combatants() []Combatant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.encounter.Combatants()
}

// CombatOrder returns the combatants re-sorted by their latest initiative
// scores. Display ordering only; the turn sequence is unchanged.
func (r *Room) CombatOrder() []Combatant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.encounter.Order()
}

// CombatTurn returns the current turn index.
func (r *Room) CombatTurn() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.encounter.Turn()
}

// SetInitiative stores a combatant's latest score without re-sorting the
// turn order.
func (r *Room) SetInitiative(id string, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.encounter.Active() {
		return ErrNoCombat
	}
	if !r.encounter.SetInitiative(id, score) {
		return fmt.Errorf("update initiative: unknown combatant %q", id)
	}
	r.lastActivity = time.Now()
	return nil
}

// NextTurn advances the encounter to the next combatant.
func (r *Room) NextTurn() (Combatant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.encounter.Active() {
		return Combatant{}, false, ErrNoCombat
	}
	r.lastActivity = time.Now()
	c, wrapped := r.encounter.NextTurn()
	return c, wrapped, nil
}

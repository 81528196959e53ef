package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateParams carries the create-session command arguments.
type CreateParams struct {
	CampaignID   string
	Name         string
	Mode         Mode
	Private      bool
	MaxPlayers   int // 0 means the mode default
	InviteCode   string
	RulesetID    string
	AIGameMaster bool
	CreatorID    string
	CreatorName  string
}

// Registry is the in-memory directory of all active session rooms. It owns
// room creation and eviction; the directory map is guarded by a lock since
// connections create, join, and leave concurrently.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	logger *zap.Logger

	soloCapacity  int
	multiCapacity int
}

// NewRegistry creates an empty Registry with the given default capacities.
//
// Precondition: soloCapacity >= 1; multiCapacity >= 2; logger must be non-nil.
func NewRegistry(soloCapacity, multiCapacity int, logger *zap.Logger) *Registry {
	return &Registry{
		rooms:         make(map[string]*Room),
		logger:        logger,
		soloCapacity:  soloCapacity,
		multiCapacity: multiCapacity,
	}
}

// Create builds a new room with the creator as its sole participant and
// registers it.
//
// Postcondition: the returned room is retrievable via Get until it empties
// or is ended.
func (reg *Registry) Create(p CreateParams) (*Room, error) {
	if !p.Mode.Valid() {
		return nil, fmt.Errorf("create session: unknown mode %q", p.Mode)
	}
	if p.CreatorID == "" {
		return nil, fmt.Errorf("create session: missing creator")
	}

	capacity := p.MaxPlayers
	if capacity <= 0 {
		if p.Mode == ModeSolo {
			capacity = reg.soloCapacity
		} else {
			capacity = reg.multiCapacity
		}
	}
	// A solo room never holds more than its creator.
	if p.Mode == ModeSolo {
		capacity = 1
	}

	id := uuid.NewString()
	room, err := newRoom(id, p.CampaignID, p.Name, p.CreatorID, p.CreatorName,
		p.Mode, capacity, p.Private, p.InviteCode, p.RulesetID, p.AIGameMaster)
	if err != nil {
		return nil, err
	}

	reg.mu.Lock()
	reg.rooms[id] = room
	reg.mu.Unlock()

	reg.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("campaign_id", p.CampaignID),
		zap.String("creator", p.CreatorID),
		zap.String("mode", string(p.Mode)),
		zap.Int("capacity", capacity),
		zap.Bool("private", p.Private),
		zap.Bool("ai_gm", p.AIGameMaster),
	)
	return room, nil
}

// Get returns the room for the given session id.
//
// Postcondition: Returns ErrNotFound when no such room is registered.
func (reg *Registry) Get(sessionID string) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return room, nil
}

// Remove deletes the room from the directory. Idempotent.
func (reg *Registry) Remove(sessionID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[sessionID]; ok {
		delete(reg.rooms, sessionID)
		reg.logger.Info("session removed", zap.String("session_id", sessionID))
	}
}

// RemoveIfEmpty deletes the room when its participant map is empty.
//
// Postcondition: Returns true iff the room was removed.
func (reg *Registry) RemoveIfEmpty(sessionID string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[sessionID]
	if !ok || !room.Empty() {
		return false
	}
	delete(reg.rooms, sessionID)
	reg.logger.Info("empty session removed", zap.String("session_id", sessionID))
	return true
}

// Departure describes one room a user left during disconnect cleanup.
type Departure struct {
	Room        *Room
	RoomDeleted bool
	Remaining   []string // participant ids remaining, for notification
}

// LeaveAll removes the user from every room they participate in, deleting
// rooms that empty out. Safe to call for a user with no memberships and
// safe to call twice.
//
// Postcondition: Returns one Departure per room actually left.
func (reg *Registry) LeaveAll(userID string) []Departure {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.Unlock()

	var departures []Departure
	for _, room := range rooms {
		removed, remaining := room.Leave(userID)
		if !removed {
			continue
		}
		dep := Departure{Room: room, Remaining: room.ParticipantIDs()}
		if remaining == 0 {
			reg.Remove(room.ID())
			dep.RoomDeleted = true
		}
		departures = append(departures, dep)
	}
	return departures
}

// Count returns the number of active rooms.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Package gameserver implements the realtime surface of the session
// server: the connection gatekeeper, the per-connection handle, the
// message router, and the websocket acceptor.
package gameserver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gametablehq/gametable/internal/game/session"
)

// Inbound command types accepted from authenticated connections.
const (
	EvtCreateSession    = "create_session"
	EvtJoinSession      = "join_session"
	EvtLeaveSession     = "leave_session"
	EvtEndSession       = "end_session"
	EvtPauseSession     = "pause_session"
	EvtResumeSession    = "resume_session"
	EvtChatMessage      = "chat_message"
	EvtDiceRoll         = "dice_roll"
	EvtCharacterStatus  = "character_status_update"
	EvtStartCombat      = "start_combat"
	EvtEndCombat        = "end_combat"
	EvtUpdateInitiative = "update_initiative"
	EvtNextTurn         = "next_turn"
)

// Outbound event types delivered to connections.
const (
	EvtSessionCreated        = "session_created"
	EvtSessionCreationFailed = "session_creation_failed"
	EvtSessionJoined         = "session_joined"
	EvtParticipantJoined     = "participant_joined"
	EvtParticipantLeft       = "participant_left"
	EvtSessionEnded          = "session_ended"
	EvtSessionPaused         = "session_paused"
	EvtSessionResumed        = "session_resumed"
	EvtChatDelivery          = "chat_message"
	EvtDiceResult            = "dice_roll"
	EvtCharacterUpdated      = "character_status_updated"
	EvtCombatStarted         = "combat_started"
	EvtCombatEnded           = "combat_ended"
	EvtInitiativeUpdated     = "initiative_updated"
	EvtTurnAdvanced          = "turn_advanced"
	EvtError                 = "error"
)

// Event is the JSON envelope exchanged over a connection.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an outbound Event, marshalling payload.
//
// Precondition: payload must be JSON-marshallable.
func NewEvent(eventType string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("gameserver: marshalling %s payload: %v", eventType, err))
	}
	return Event{Type: eventType, Payload: data}
}

// CreateSessionPayload carries the create_session command.
type CreateSessionPayload struct {
	CampaignID  string `json:"campaignId"`
	SessionName string `json:"sessionName"`
	Mode        string `json:"mode"`
	IsPrivate   bool   `json:"isPrivate"`
	MaxPlayers  int    `json:"maxPlayers,omitempty"`
	InviteCode  string `json:"inviteCode,omitempty"`
	Ruleset     string `json:"ruleset,omitempty"`
	AIGMEnabled bool   `json:"aiGMEnabled"`
}

// JoinSessionPayload carries the join_session command.
type JoinSessionPayload struct {
	SessionID   string `json:"sessionId"`
	CharacterID string `json:"characterId,omitempty"`
	InviteCode  string `json:"inviteCode,omitempty"`
}

// SessionRefPayload carries commands that only name a session
// (leave_session, end_session, pause_session, resume_session, end_combat,
// next_turn).
type SessionRefPayload struct {
	SessionID string `json:"sessionId"`
}

// ChatMessagePayload carries the chat_message command.
type ChatMessagePayload struct {
	SessionID    string `json:"sessionId"`
	Message      string `json:"message"`
	MessageType  string `json:"messageType"`
	TargetUserID string `json:"targetUserId,omitempty"`
}

// DiceRollPayload carries the dice_roll command. Target, when present,
// requests success evaluation against that value.
type DiceRollPayload struct {
	SessionID      string `json:"sessionId"`
	DiceExpression string `json:"diceExpression"`
	Description    string `json:"description,omitempty"`
	IsSecret       bool   `json:"isSecret,omitempty"`
	Target         *int   `json:"target,omitempty"`
}

// CharacterStatusPayload carries the character_status_update command.
// StatusUpdate is opaque to the router; it is validated only for
// membership and broadcast as-is.
type CharacterStatusPayload struct {
	SessionID    string          `json:"sessionId"`
	CharacterID  string          `json:"characterId"`
	StatusUpdate json.RawMessage `json:"statusUpdate"`
}

// CombatantPayload is one start_combat entry.
type CombatantPayload struct {
	CharacterID string `json:"characterId"`
	Initiative  int    `json:"initiative"`
	IsNPC       bool   `json:"isNPC,omitempty"`
}

// StartCombatPayload carries the start_combat command.
type StartCombatPayload struct {
	SessionID    string             `json:"sessionId"`
	Participants []CombatantPayload `json:"participants"`
}

// UpdateInitiativePayload carries the update_initiative command.
type UpdateInitiativePayload struct {
	SessionID     string `json:"sessionId"`
	CharacterID   string `json:"characterId"`
	NewInitiative int    `json:"newInitiative"`
}

// ErrorPayload is the structured error event surfaced to the originating
// connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChatDeliveryPayload is the routed chat_message event.
type ChatDeliveryPayload struct {
	SessionID    string    `json:"sessionId"`
	SenderID     string    `json:"senderId"`
	SenderName   string    `json:"senderName"`
	Message      string    `json:"message"`
	MessageType  string    `json:"messageType"`
	TargetUserID string    `json:"targetUserId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// DiceResultPayload is the routed dice_roll event.
type DiceResultPayload struct {
	SessionID   string    `json:"sessionId"`
	RollerID    string    `json:"rollerId"`
	RollerName  string    `json:"rollerName"`
	Notation    string    `json:"notation"`
	Rolls       [][]int   `json:"rolls"`
	Modifier    int       `json:"modifier"`
	Total       int       `json:"total"`
	Success     *bool     `json:"success,omitempty"`
	Critical    bool      `json:"critical"`
	Fumble      bool      `json:"fumble"`
	Rendered    string    `json:"rendered"`
	Description string    `json:"description,omitempty"`
	IsSecret    bool      `json:"isSecret"`
	Timestamp   time.Time `json:"timestamp"`
}

// CombatStartedPayload is the broadcast start_combat result; Participants
// is the authoritative turn order, sorted descending by initiative.
type CombatStartedPayload struct {
	SessionID    string             `json:"sessionId"`
	Participants []CombatantPayload `json:"participants"`
	CurrentTurn  int                `json:"currentTurn"`
	StartedBy    string             `json:"startedBy"`
	Timestamp    time.Time          `json:"timestamp"`
}

// ParticipantPayload mirrors one session participant in outbound events.
type ParticipantPayload struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	CharacterID string `json:"characterId,omitempty"`
}

// SessionCreatedPayload acknowledges a successful create_session.
type SessionCreatedPayload struct {
	Session   session.Info `json:"session"`
	Timestamp time.Time    `json:"timestamp"`
}

// SessionJoinedPayload acknowledges a successful join_session with the
// current room roster.
type SessionJoinedPayload struct {
	Session      session.Info         `json:"session"`
	Participants []ParticipantPayload `json:"participants"`
	Timestamp    time.Time            `json:"timestamp"`
}

// ParticipantJoinedPayload announces a new participant to the room.
type ParticipantJoinedPayload struct {
	SessionID   string             `json:"sessionId"`
	Participant ParticipantPayload `json:"participant"`
	Timestamp   time.Time          `json:"timestamp"`
}

// ParticipantLeftPayload announces a departure to the room.
type ParticipantLeftPayload struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionStatusPayload announces a session lifecycle transition
// (session_paused, session_resumed, session_ended).
type SessionStatusPayload struct {
	SessionID string    `json:"sessionId"`
	Status    string    `json:"status"`
	By        string    `json:"by"`
	Timestamp time.Time `json:"timestamp"`
}

// CharacterUpdatedPayload is the broadcast character_status_update.
type CharacterUpdatedPayload struct {
	SessionID    string          `json:"sessionId"`
	CharacterID  string          `json:"characterId"`
	UserID       string          `json:"userId"`
	StatusUpdate json.RawMessage `json:"statusUpdate"`
	Timestamp    time.Time       `json:"timestamp"`
}

// CombatEndedPayload is the broadcast end_combat result.
type CombatEndedPayload struct {
	SessionID string    `json:"sessionId"`
	EndedBy   string    `json:"endedBy"`
	Timestamp time.Time `json:"timestamp"`
}

// InitiativeUpdatedPayload is the broadcast update_initiative result. Order
// reflects the latest scores; the turn sequence fixed at combat start is
// unchanged.
type InitiativeUpdatedPayload struct {
	SessionID     string             `json:"sessionId"`
	CharacterID   string             `json:"characterId"`
	NewInitiative int                `json:"newInitiative"`
	Order         []CombatantPayload `json:"order"`
	UpdatedBy     string             `json:"updatedBy"`
	Timestamp     time.Time          `json:"timestamp"`
}

// TurnAdvancedPayload is the broadcast next_turn result.
type TurnAdvancedPayload struct {
	SessionID string           `json:"sessionId"`
	Combatant CombatantPayload `json:"combatant"`
	TurnIndex int              `json:"turnIndex"`
	NewRound  bool             `json:"newRound"`
	Timestamp time.Time        `json:"timestamp"`
}

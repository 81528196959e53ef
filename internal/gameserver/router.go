package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gametablehq/gametable/internal/auth"
	"github.com/gametablehq/gametable/internal/game/dice"
	"github.com/gametablehq/gametable/internal/game/ruleset"
	"github.com/gametablehq/gametable/internal/game/session"
)

// DefaultRulesetID is the game system assumed when a session names none.
const DefaultRulesetID = "dnd5e"

// Chat message types accepted on chat_message commands.
const (
	ChatInCharacter    = "ic"
	ChatOutOfCharacter = "ooc"
	ChatSystem         = "system"
	ChatWhisper        = "whisper"
)

// CampaignVerifier checks that a campaign id refers to a stored campaign.
// Implemented by the postgres campaign repository; optional.
type CampaignVerifier interface {
	CampaignExists(ctx context.Context, id string) (bool, error)
}

// CharacterVerifier checks that a character id refers to a stored
// character. Implemented by the postgres character repository; optional.
type CharacterVerifier interface {
	CharacterExists(ctx context.Context, id string) (bool, error)
}

// SessionRecorder persists minimal session lifecycle records so ended
// sessions remain queryable. Optional.
type SessionRecorder interface {
	RecordSessionStart(ctx context.Context, info session.Info) error
	RecordSessionEnd(ctx context.Context, sessionID string) error
}

// Router dispatches inbound commands from authenticated connections to the
// session registry, the dice engine, and the other participants' event
// queues. All session state lives in the rooms; the router itself is
// stateless and safe for concurrent dispatch.
type Router struct {
	registry   *session.Registry
	roster     *Roster
	roller     *dice.Roller
	rulesets   *ruleset.Registry
	campaigns  CampaignVerifier
	characters CharacterVerifier
	records    SessionRecorder
	logger     *zap.Logger
}

// NewRouter creates a Router. campaigns, characters, and records may be
// nil; the corresponding checks and writes are skipped.
//
// Precondition: registry, roster, roller, rulesets, and logger must be
// non-nil.
func NewRouter(registry *session.Registry, roster *Roster, roller *dice.Roller, rulesets *ruleset.Registry, campaigns CampaignVerifier, characters CharacterVerifier, records SessionRecorder, logger *zap.Logger) *Router {
	return &Router{
		registry:   registry,
		roster:     roster,
		roller:     roller,
		rulesets:   rulesets,
		campaigns:  campaigns,
		characters: characters,
		records:    records,
		logger:     logger,
	}
}

// Dispatch routes one inbound event. Command failures surface to the
// originating connection as error events (session_creation_failed for
// create_session); a panicking handler is recovered, logged, and reported
// as an internal error, never tearing down the connection.
func (rt *Router) Dispatch(ctx context.Context, c *Client, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			rt.logger.Error("command handler panicked",
				zap.String("event", ev.Type),
				zap.String("user_id", c.UserID()),
				zap.Any("panic", rec),
			)
			rt.sendError(c, EvtError, "internal", "internal server error")
		}
	}()

	var err error
	switch ev.Type {
	case EvtCreateSession:
		err = rt.createSession(ctx, c, ev.Payload)
	case EvtJoinSession:
		err = rt.joinSession(ctx, c, ev.Payload)
	case EvtLeaveSession:
		err = rt.leaveSession(c, ev.Payload)
	case EvtEndSession:
		err = rt.endSession(ctx, c, ev.Payload)
	case EvtPauseSession:
		err = rt.pauseSession(c, ev.Payload)
	case EvtResumeSession:
		err = rt.resumeSession(c, ev.Payload)
	case EvtChatMessage:
		err = rt.chatMessage(c, ev.Payload)
	case EvtDiceRoll:
		err = rt.diceRoll(c, ev.Payload)
	case EvtCharacterStatus:
		err = rt.characterStatus(c, ev.Payload)
	case EvtStartCombat:
		err = rt.startCombat(c, ev.Payload)
	case EvtEndCombat:
		err = rt.endCombat(c, ev.Payload)
	case EvtUpdateInitiative:
		err = rt.updateInitiative(c, ev.Payload)
	case EvtNextTurn:
		err = rt.nextTurn(c, ev.Payload)
	default:
		err = fmt.Errorf("unknown event type %q", ev.Type)
	}

	if err != nil {
		rt.logger.Debug("command rejected",
			zap.String("event", ev.Type),
			zap.String("user_id", c.UserID()),
			zap.Error(err),
		)
		failure := EvtError
		if ev.Type == EvtCreateSession {
			failure = EvtSessionCreationFailed
		}
		rt.sendError(c, failure, errorCode(err), err.Error())
	}
}

func (rt *Router) createSession(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p CreateSessionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding create_session: %w", err)
	}

	rulesetID := p.Ruleset
	if rulesetID == "" {
		rulesetID = DefaultRulesetID
	}
	if _, ok := rt.rulesets.Get(rulesetID); !ok {
		return fmt.Errorf("%w: unknown ruleset %q", session.ErrNotFound, rulesetID)
	}

	if p.CampaignID != "" && rt.campaigns != nil {
		exists, cerr := rt.campaigns.CampaignExists(ctx, p.CampaignID)
		if cerr != nil {
			return fmt.Errorf("verifying campaign %s: %w", p.CampaignID, cerr)
		}
		if !exists {
			return fmt.Errorf("%w: campaign %q", session.ErrNotFound, p.CampaignID)
		}
	}

	room, err := rt.registry.Create(session.CreateParams{
		CampaignID:   p.CampaignID,
		Name:         p.SessionName,
		Mode:         session.Mode(p.Mode),
		Private:      p.IsPrivate,
		MaxPlayers:   p.MaxPlayers,
		InviteCode:   p.InviteCode,
		RulesetID:    rulesetID,
		AIGameMaster: p.AIGMEnabled,
		CreatorID:    c.UserID(),
		CreatorName:  c.Name(),
	})
	if err != nil {
		return err
	}

	if rt.records != nil {
		if rerr := rt.records.RecordSessionStart(ctx, room.Snapshot()); rerr != nil {
			rt.logger.Warn("session record insert failed",
				zap.String("session_id", room.ID()),
				zap.Error(rerr),
			)
		}
	}

	c.SetSession(room.ID())
	rt.push(c, NewEvent(EvtSessionCreated, SessionCreatedPayload{
		Session:   room.Snapshot(),
		Timestamp: time.Now().UTC(),
	}))
	return nil
}

func (rt *Router) joinSession(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p JoinSessionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding join_session: %w", err)
	}

	room, err := rt.registry.Get(p.SessionID)
	if err != nil {
		return err
	}

	if p.CharacterID != "" && rt.characters != nil {
		exists, cerr := rt.characters.CharacterExists(ctx, p.CharacterID)
		if cerr != nil {
			return fmt.Errorf("verifying character %s: %w", p.CharacterID, cerr)
		}
		if !exists {
			return fmt.Errorf("%w: character %q", session.ErrNotFound, p.CharacterID)
		}
	}

	joined, created, err := room.Join(c.UserID(), c.Name(), p.CharacterID, p.InviteCode)
	if err != nil {
		return err
	}
	c.SetSession(room.ID())

	rt.push(c, NewEvent(EvtSessionJoined, SessionJoinedPayload{
		Session:      room.Snapshot(),
		Participants: participantPayloads(room.Participants()),
		Timestamp:    time.Now().UTC(),
	}))

	// A rejoin is acknowledged but not re-announced; the room already
	// heard about this participant.
	if !created {
		return nil
	}

	rt.broadcast(room, NewEvent(EvtParticipantJoined, ParticipantJoinedPayload{
		SessionID:   room.ID(),
		Participant: participantPayload(joined),
		Timestamp:   time.Now().UTC(),
	}), c.UserID())

	rt.logger.Info("participant joined",
		zap.String("session_id", room.ID()),
		zap.String("user_id", c.UserID()),
		zap.String("role", string(joined.Role)),
	)
	return nil
}

func (rt *Router) leaveSession(c *Client, raw json.RawMessage) error {
	var p SessionRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding leave_session: %w", err)
	}

	room, err := rt.registry.Get(p.SessionID)
	if err != nil {
		return err
	}

	removed, remaining := room.Leave(c.UserID())
	if !removed {
		// Leaving a room you are not in is a no-op, matching disconnect
		// cleanup semantics.
		return nil
	}
	c.SetSession("")

	left := NewEvent(EvtParticipantLeft, ParticipantLeftPayload{
		SessionID: room.ID(),
		UserID:    c.UserID(),
		UserName:  c.Name(),
		Reason:    "left",
		Timestamp: time.Now().UTC(),
	})
	rt.push(c, left)
	rt.broadcast(room, left, c.UserID())

	if remaining == 0 {
		rt.registry.RemoveIfEmpty(room.ID())
	}
	return nil
}

func (rt *Router) endSession(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p SessionRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding end_session: %w", err)
	}

	room, err := rt.registry.Get(p.SessionID)
	if err != nil {
		return err
	}
	if !room.CanModerate(c.UserID()) {
		return fmt.Errorf("%w: end_session requires game-master authority", session.ErrForbidden)
	}

	room.End()
	rt.broadcast(room, NewEvent(EvtSessionEnded, SessionStatusPayload{
		SessionID: room.ID(),
		Status:    string(session.StatusEnded),
		By:        c.UserID(),
		Timestamp: time.Now().UTC(),
	}))
	rt.registry.Remove(room.ID())

	if rt.records != nil {
		if rerr := rt.records.RecordSessionEnd(ctx, room.ID()); rerr != nil {
			rt.logger.Warn("session record close failed",
				zap.String("session_id", room.ID()),
				zap.Error(rerr),
			)
		}
	}

	rt.logger.Info("session ended",
		zap.String("session_id", room.ID()),
		zap.String("user_id", c.UserID()),
	)
	return nil
}

func (rt *Router) pauseSession(c *Client, raw json.RawMessage) error {
	var p SessionRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding pause_session: %w", err)
	}

	room, err := rt.registry.Get(p.SessionID)
	if err != nil {
		return err
	}
	if !room.CanModerate(c.UserID()) {
		return fmt.Errorf("%w: pause_session requires game-master authority", session.ErrForbidden)
	}
	if err := room.Pause(); err != nil {
		return err
	}

	rt.broadcast(room, NewEvent(EvtSessionPaused, SessionStatusPayload{
		SessionID: room.ID(),
		Status:    string(session.StatusPaused),
		By:        c.UserID(),
		Timestamp: time.Now().UTC(),
	}))
	return nil
}

func (rt *Router) resumeSession(c *Client, raw json.RawMessage) error {
	var p SessionRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding resume_session: %w", err)
	}

	room, err := rt.registry.Get(p.SessionID)
	if err != nil {
		return err
	}
	if !room.CanModerate(c.UserID()) {
		return fmt.Errorf("%w: resume_session requires game-master authority", session.ErrForbidden)
	}
	if err := room.Resume(); err != nil {
		return err
	}

	rt.broadcast(room, NewEvent(EvtSessionResumed, SessionStatusPayload{
		SessionID: room.ID(),
		Status:    string(session.StatusActive),
		By:        c.UserID(),
		Timestamp: time.Now().UTC(),
	}))
	return nil
}

func (rt *Router) chatMessage(c *Client, raw json.RawMessage) error {
	var p ChatMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding chat_message: %w", err)
	}

	room, _, err := rt.memberRoom(p.SessionID, c.UserID())
	if err != nil {
		return err
	}

	switch p.MessageType {
	case ChatInCharacter, ChatOutOfCharacter, ChatSystem, ChatWhisper:
	case "":
		p.MessageType = ChatOutOfCharacter
	default:
		return fmt.Errorf("unknown message type %q", p.MessageType)
	}
	if p.MessageType == ChatWhisper && p.TargetUserID == "" {
		return fmt.Errorf("whisper requires a target user")
	}

	room.Touch()
	ev := NewEvent(EvtChatDelivery, ChatDeliveryPayload{
		SessionID:    room.ID(),
		SenderID:     c.UserID(),
		SenderName:   c.Name(),
		Message:      p.Message,
		MessageType:  p.MessageType,
		TargetUserID: p.TargetUserID,
		Timestamp:    time.Now().UTC(),
	})

	if p.MessageType == ChatWhisper {
		// Whispers reach the target, every game master, and the sender.
		if _, ok := room.Participant(p.TargetUserID); !ok {
			return fmt.Errorf("%w: whisper target %q is not in the session", session.ErrNotFound, p.TargetUserID)
		}
		recipients := append([]string{p.TargetUserID, c.UserID()}, room.GameMasterIDs()...)
		rt.deliver(recipients, ev)
		return nil
	}

	rt.broadcast(room, ev)
	return nil
}

func (rt *Router) diceRoll(c *Client, raw json.RawMessage) error {
	var p DiceRollPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding dice_roll: %w", err)
	}

	room, _, err := rt.memberRoom(p.SessionID, c.UserID())
	if err != nil {
		return err
	}

	rulesetID := room.RulesetID()
	if rulesetID == "" {
		rulesetID = DefaultRulesetID
	}
	rs, ok := rt.rulesets.Get(rulesetID)
	if !ok {
		return fmt.Errorf("%w: unknown ruleset %q", session.ErrNotFound, rulesetID)
	}

	res, err := rt.roller.RollExpr(p.DiceExpression, rs, p.Target)
	if err != nil {
		return err
	}

	room.Touch()
	ev := NewEvent(EvtDiceResult, DiceResultPayload{
		SessionID:   room.ID(),
		RollerID:    c.UserID(),
		RollerName:  c.Name(),
		Notation:    res.Notation,
		Rolls:       res.Rolls,
		Modifier:    res.Modifier,
		Total:       res.Total,
		Success:     res.Success,
		Critical:    res.Critical,
		Fumble:      res.Fumble,
		Rendered:    res.String(),
		Description: p.Description,
		IsSecret:    p.IsSecret,
		Timestamp:   time.Now().UTC(),
	})

	if p.IsSecret {
		// Secret rolls reach the game masters and the roller only.
		recipients := append([]string{c.UserID()}, room.GameMasterIDs()...)
		rt.deliver(recipients, ev)
		return nil
	}

	rt.broadcast(room, ev)
	return nil
}

func (rt *Router) characterStatus(c *Client, raw json.RawMessage) error {
	var p CharacterStatusPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding character_status_update: %w", err)
	}
	if p.CharacterID == "" {
		return fmt.Errorf("character_status_update requires a character id")
	}

	room, _, err := rt.memberRoom(p.SessionID, c.UserID())
	if err != nil {
		return err
	}

	room.Touch()
	rt.broadcast(room, NewEvent(EvtCharacterUpdated, CharacterUpdatedPayload{
		SessionID:    room.ID(),
		CharacterID:  p.CharacterID,
		UserID:       c.UserID(),
		StatusUpdate: p.StatusUpdate,
		Timestamp:    time.Now().UTC(),
	}))
	return nil
}

func (rt *Router) startCombat(c *Client, raw json.RawMessage) error {
	var p StartCombatPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding start_combat: %w", err)
	}

	room, _, err := rt.memberRoom(p.SessionID, c.UserID())
	if err != nil {
		return err
	}
	if !room.CanModerate(c.UserID()) {
		return fmt.Errorf("%w: start_combat requires game-master authority", session.ErrForbidden)
	}

	entries := make([]session.Combatant, 0, len(p.Participants))
	for _, cp := range p.Participants {
		entries = append(entries, session.Combatant{
			ID:         cp.CharacterID,
			Initiative: cp.Initiative,
			NPC:        cp.IsNPC,
		})
	}

	order, err := room.StartCombat(entries)
	if err != nil {
		return err
	}

	rt.broadcast(room, NewEvent(EvtCombatStarted, CombatStartedPayload{
		SessionID:    room.ID(),
		Participants: combatantPayloads(order),
		CurrentTurn:  0,
		StartedBy:    c.UserID(),
		Timestamp:    time.Now().UTC(),
	}))

	rt.logger.Info("combat started",
		zap.String("session_id", room.ID()),
		zap.String("user_id", c.UserID()),
		zap.Int("combatants", len(order)),
	)
	return nil
}

func (rt *Router) endCombat(c *Client, raw json.RawMessage) error {
	var p SessionRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding end_combat: %w", err)
	}

	room, _, err := rt.memberRoom(p.SessionID, c.UserID())
	if err != nil {
		return err
	}
	if !room.CanModerate(c.UserID()) {
		return fmt.Errorf("%w: end_combat requires game-master authority", session.ErrForbidden)
	}
	if err := room.EndCombat(); err != nil {
		return err
	}

	rt.broadcast(room, NewEvent(EvtCombatEnded, CombatEndedPayload{
		SessionID: room.ID(),
		EndedBy:   c.UserID(),
		Timestamp: time.Now().UTC(),
	}))
	return nil
}

func (rt *Router) updateInitiative(c *Client, raw json.RawMessage) error {
	var p UpdateInitiativePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding update_initiative: %w", err)
	}

	room, _, err := rt.memberRoom(p.SessionID, c.UserID())
	if err != nil {
		return err
	}

	if err := room.SetInitiative(p.CharacterID, p.NewInitiative); err != nil {
		return err
	}

	rt.broadcast(room, NewEvent(EvtInitiativeUpdated, InitiativeUpdatedPayload{
		SessionID:     room.ID(),
		CharacterID:   p.CharacterID,
		NewInitiative: p.NewInitiative,
		Order:         combatantPayloads(room.CombatOrder()),
		UpdatedBy:     c.UserID(),
		Timestamp:     time.Now().UTC(),
	}))
	return nil
}

func (rt *Router) nextTurn(c *Client, raw json.RawMessage) error {
	var p SessionRefPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding next_turn: %w", err)
	}

	room, _, err := rt.memberRoom(p.SessionID, c.UserID())
	if err != nil {
		return err
	}
	if !room.CanModerate(c.UserID()) {
		return fmt.Errorf("%w: next_turn requires game-master authority", session.ErrForbidden)
	}

	next, wrapped, err := room.NextTurn()
	if err != nil {
		return err
	}

	rt.broadcast(room, NewEvent(EvtTurnAdvanced, TurnAdvancedPayload{
		SessionID: room.ID(),
		Combatant: CombatantPayload{
			CharacterID: next.ID,
			Initiative:  next.Initiative,
			IsNPC:       next.NPC,
		},
		TurnIndex: room.CombatTurn(),
		NewRound:  wrapped,
		Timestamp: time.Now().UTC(),
	}))
	return nil
}

// memberRoom resolves the room and checks the caller's membership.
//
// Postcondition: Returns ErrNotFound for an unknown session and
// ErrForbidden for a non-participant.
func (rt *Router) memberRoom(sessionID, userID string) (*session.Room, session.Participant, error) {
	room, err := rt.registry.Get(sessionID)
	if err != nil {
		return nil, session.Participant{}, err
	}
	member, ok := room.Participant(userID)
	if !ok {
		return nil, session.Participant{}, fmt.Errorf("%w: not a session participant", session.ErrForbidden)
	}
	return room, member, nil
}

// broadcast pushes ev to every room participant except those listed in
// exclude.
func (rt *Router) broadcast(room *session.Room, ev Event, exclude ...string) {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	var ids []string
	for _, id := range room.ParticipantIDs() {
		if _, ok := skip[id]; !ok {
			ids = append(ids, id)
		}
	}
	rt.deliver(ids, ev)
}

// deliver pushes ev to each listed user at most once.
func (rt *Router) deliver(userIDs []string, ev Event) {
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		target, ok := rt.roster.Get(id)
		if !ok {
			continue
		}
		if err := target.Push(ev); err != nil {
			rt.logger.Debug("event dropped",
				zap.String("user_id", id),
				zap.String("event", ev.Type),
				zap.Error(err),
			)
		}
	}
}

func (rt *Router) push(c *Client, ev Event) {
	if err := c.Push(ev); err != nil {
		rt.logger.Debug("event dropped",
			zap.String("user_id", c.UserID()),
			zap.String("event", ev.Type),
			zap.Error(err),
		)
	}
}

func (rt *Router) sendError(c *Client, eventType, code, message string) {
	rt.push(c, NewEvent(eventType, ErrorPayload{Code: code, Message: message}))
}

// errorCode maps a command failure to its wire error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "not_found"
	case errors.Is(err, session.ErrSessionEnded):
		return "session_ended"
	case errors.Is(err, session.ErrSessionFull):
		return "session_full"
	case errors.Is(err, session.ErrBadInvite):
		return "bad_invite"
	case errors.Is(err, session.ErrModeRestricted):
		return "mode_restricted"
	case errors.Is(err, session.ErrForbidden):
		return "forbidden"
	case errors.Is(err, session.ErrNoCombat):
		return "no_combat"
	case errors.Is(err, session.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, dice.ErrInvalidNotation):
		return "invalid_notation"
	case errors.Is(err, auth.ErrAuthentication):
		return "authentication_failed"
	default:
		return "bad_request"
	}
}

func participantPayload(p session.Participant) ParticipantPayload {
	return ParticipantPayload{
		UserID:      p.UserID,
		Name:        p.Name,
		Role:        string(p.Role),
		CharacterID: p.CharacterID,
	}
}

func participantPayloads(ps []session.Participant) []ParticipantPayload {
	out := make([]ParticipantPayload, 0, len(ps))
	for _, p := range ps {
		out = append(out, participantPayload(p))
	}
	return out
}

func combatantPayloads(cs []session.Combatant) []CombatantPayload {
	out := make([]CombatantPayload, 0, len(cs))
	for _, cb := range cs {
		out = append(out, CombatantPayload{
			CharacterID: cb.ID,
			Initiative:  cb.Initiative,
			IsNPC:       cb.NPC,
		})
	}
	return out
}

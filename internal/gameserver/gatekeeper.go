package gameserver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gametablehq/gametable/internal/auth"
	"github.com/gametablehq/gametable/internal/game/session"
)

// Gatekeeper admits connections. Authentication is all-or-nothing: the
// token must verify and resolve to an active user before a Client handle
// exists, and nothing about an unauthenticated connection is retained.
type Gatekeeper struct {
	verifier auth.Verifier
	users    auth.UserGetter
	registry *session.Registry
	roster   *Roster
	buffer   int
	logger   *zap.Logger
}

// NewGatekeeper creates a Gatekeeper.
//
// Precondition: all collaborators must be non-nil.
func NewGatekeeper(verifier auth.Verifier, users auth.UserGetter, registry *session.Registry, roster *Roster, eventBuffer int, logger *zap.Logger) *Gatekeeper {
	return &Gatekeeper{
		verifier: verifier,
		users:    users,
		registry: registry,
		roster:   roster,
		buffer:   eventBuffer,
		logger:   logger,
	}
}

// Authenticate verifies token, resolves the user record, and registers a
// new connection handle in the roster. A previous connection for the same
// user is superseded and closed.
//
// Postcondition: on success the returned Client is live in the roster;
// every failure wraps auth.ErrAuthentication.
func (g *Gatekeeper) Authenticate(ctx context.Context, token string) (*Client, error) {
	claims, err := g.verifier.VerifyToken(ctx, token)
	if err != nil {
		g.logger.Warn("token rejected", zap.Error(err))
		return nil, err
	}

	user, err := g.users.GetUser(ctx, claims.UserID)
	if err != nil {
		g.logger.Warn("user lookup failed",
			zap.String("user_id", claims.UserID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", auth.ErrAuthentication, err)
	}
	if !user.Active {
		return nil, fmt.Errorf("%w: user %s is inactive", auth.ErrAuthentication, user.ID)
	}

	c := NewClient(user.ID, user.Name, user.Role, g.buffer)
	g.roster.Replace(c)

	g.logger.Info("connection authenticated",
		zap.String("connection_id", c.ID()),
		zap.String("user_id", user.ID),
		zap.String("role", user.Role),
	)
	return c, nil
}

// Disconnect tears down a connection: it removes the roster entry, leaves
// every joined session, notifies remaining participants, and closes the
// handle. Safe to call more than once and safe to race with an explicit
// leave_session.
func (g *Gatekeeper) Disconnect(c *Client) {
	if c == nil {
		return
	}

	// Only the current roster entry owns session cleanup. A superseded
	// connection just closes; its user is still online.
	if g.roster.RemoveIf(c.UserID(), c) {
		departures := g.registry.LeaveAll(c.UserID())
		for _, dep := range departures {
			g.notify(dep.Remaining, NewEvent(EvtParticipantLeft, ParticipantLeftPayload{
				SessionID: dep.Room.ID(),
				UserID:    c.UserID(),
				UserName:  c.Name(),
				Reason:    "disconnected",
				Timestamp: time.Now().UTC(),
			}))

			g.logger.Info("disconnect cleanup",
				zap.String("session_id", dep.Room.ID()),
				zap.String("user_id", c.UserID()),
				zap.Bool("session_deleted", dep.RoomDeleted),
			)
		}
	}

	c.Close()
}

func (g *Gatekeeper) notify(userIDs []string, ev Event) {
	for _, id := range userIDs {
		target, ok := g.roster.Get(id)
		if !ok {
			continue
		}
		if err := target.Push(ev); err != nil {
			g.logger.Debug("notify dropped",
				zap.String("user_id", id),
				zap.String("event", ev.Type),
				zap.Error(err),
			)
		}
	}
}

package gameserver

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Client is the handle for one authenticated connection. Outbound events
// are queued on a buffered channel drained by the transport's write pump,
// so routing never blocks on a slow consumer.
type Client struct {
	id     string
	userID string
	name   string
	role   string

	mu      sync.Mutex
	closed  bool
	session string
	events  chan Event
}

// NewClient creates a connection handle for the given authenticated user.
//
// Precondition: userID must be non-empty; bufferSize defaults to 64 when
// not positive.
func NewClient(userID, name, role string, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		name:   name,
		role:   role,
		events: make(chan Event, bufferSize),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated user identifier.
func (c *Client) UserID() string { return c.userID }

// Name returns the user's display name.
func (c *Client) Name() string { return c.name }

// Role returns the role claim attached at authentication.
func (c *Client) Role() string { return c.role }

// SetSession records the currently-joined session id on the handle.
// Informational; room membership is authoritative in the session registry.
func (c *Client) SetSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sessionID
}

// Session returns the currently-joined session id, or "" when none.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Push enqueues an outbound event.
//
// Postcondition: The event is queued, or an error is returned when the
// handle is closed or its buffer is full.
func (c *Client) Push(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection %s is closed", c.id)
	}
	select {
	case c.events <- ev:
		return nil
	default:
		return fmt.Errorf("connection %s event buffer full", c.id)
	}
}

// Events returns the read-only outbound event channel. The transport's
// write pump drains it until Close.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Close marks the handle closed and closes the event channel. Idempotent.
//
// Postcondition: Further Push calls return an error.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// IsClosed reports whether the handle has been closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

package gameserver

import "sync"

// Roster maps authenticated user ids to their live connection handle.
// One connection per user; a fresh connection supersedes the old one.
type Roster struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRoster creates an empty Roster.
func NewRoster() *Roster {
	return &Roster{clients: make(map[string]*Client)}
}

// Replace installs c as the connection for its user, closing any previous
// connection for the same user.
//
// Postcondition: Get(c.UserID()) returns c; the superseded handle, if any,
// is closed.
func (ro *Roster) Replace(c *Client) {
	ro.mu.Lock()
	old := ro.clients[c.UserID()]
	ro.clients[c.UserID()] = c
	ro.mu.Unlock()

	if old != nil && old != c {
		old.Close()
	}
}

// Get returns the live connection for userID.
func (ro *Roster) Get(userID string) (*Client, bool) {
	ro.mu.RLock()
	defer ro.mu.RUnlock()
	c, ok := ro.clients[userID]
	return c, ok
}

// RemoveIf removes the roster entry for userID only when it still points
// at c. The identity guard keeps a disconnecting old connection from
// evicting its replacement.
//
// Postcondition: Returns true iff the entry was removed.
func (ro *Roster) RemoveIf(userID string, c *Client) bool {
	ro.mu.Lock()
	defer ro.mu.Unlock()
	if ro.clients[userID] != c {
		return false
	}
	delete(ro.clients, userID)
	return true
}

// Count returns the number of live connections.
func (ro *Roster) Count() int {
	ro.mu.RLock()
	defer ro.mu.RUnlock()
	return len(ro.clients)
}

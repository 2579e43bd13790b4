package core

import "sync"

// SessionTable maps session ids to live clients. The hub is the only
// writer; message relay handlers read it concurrently for direct
// delivery, so access is guarded rather than dispatcher-confined.
type SessionTable struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewSessionTable constructs an empty table.
func NewSessionTable() *SessionTable {
	return &SessionTable{clients: make(map[string]*Client)}
}

// Add inserts a client keyed by its session id.
func (t *SessionTable) Add(c *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clients[c.SessionID] = c
}

// Remove deletes the client for sessionID. Returns true if it was present.
func (t *SessionTable) Remove(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.clients[sessionID]; !ok {
		return false
	}
	delete(t.clients, sessionID)
	return true
}

// Get returns the client for sessionID.
func (t *SessionTable) Get(sessionID string) (*Client, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.clients[sessionID]
	return c, ok
}

// Each calls fn for every live client.
func (t *SessionTable) Each(fn func(*Client)) {
	t.mu.RLock()
	snapshot := make([]*Client, 0, len(t.clients))
	for _, c := range t.clients {
		snapshot = append(snapshot, c)
	}
	t.mu.RUnlock()

	for _, c := range snapshot {
		fn(c)
	}
}

// Len returns the number of live sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clients)
}

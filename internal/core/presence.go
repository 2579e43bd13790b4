package core

import (
	"sort"
	"sync"
)

// PresenceRegistry is the authoritative, process-local record of which
// users are online. At most one entry exists per user: a second session
// for the same user overwrites the first ("most recently seen" wins).
type PresenceRegistry struct {
	mu      sync.RWMutex
	entries map[string]string // userID -> sessionID
}

// NewPresenceRegistry constructs an empty registry.
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{entries: make(map[string]string)}
}

// RecordOnline inserts or overwrites the entry for userID. Idempotent.
func (p *PresenceRegistry) RecordOnline(userID, sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[userID] = sessionID
}

// RecordOffline removes the entry for userID, but only if sessionID
// still owns it. An older session disconnecting after the user
// reconnected elsewhere must not mark the newer session offline.
// Returns true if the entry was removed. No-op if absent: a client may
// disconnect before ever identifying.
func (p *PresenceRegistry) RecordOffline(userID, sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.entries[userID]; ok && current == sessionID {
		delete(p.entries, userID)
		return true
	}
	return false
}

// Lookup returns the session id for userID, reflecting the most recent
// RecordOnline/RecordOffline call.
func (p *PresenceRegistry) Lookup(userID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sessionID, ok := p.entries[userID]
	return sessionID, ok
}

// ListOnline returns a sorted snapshot of online user ids. The snapshot
// may be immediately stale; presence is best-effort.
func (p *PresenceRegistry) ListOnline() []string {
	p.mu.RLock()
	users := make([]string, 0, len(p.entries))
	for userID := range p.entries {
		users = append(users, userID)
	}
	p.mu.RUnlock()

	sort.Strings(users)
	return users
}

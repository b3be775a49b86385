// Package runtime handles live-connection state, event dispatch, and the
// background workers around them. It contains no business rules; the
// services decide what to deliver, the runtime decides to whom.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"sort"
	"sync"
	"time"
)

// Registry is the authoritative mapping from user identity to its single
// live connection and last-known ephemeral status. Every connection handler
// touches it, so all state lives behind one coarse lock; operations are
// O(1) map access except Snapshot.
//
// Invariant: at most one entry per identity. Registering a newer connection
// supersedes the previous one, and events carrying the superseded handle
// can no longer mutate the entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

type registryEntry struct {
	user     domain.User
	conn     contract.Connection
	status   domain.Status
	lastSeen time.Time
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Register installs conn as the live connection for the user, replacing any
// existing entry. The superseded connection (if any) is returned so the
// caller can close it; its later disconnect is a no-op in Deregister.
func (r *Registry) Register(user domain.User, conn contract.Connection) contract.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	var superseded contract.Connection
	if prev, ok := r.entries[user.ID]; ok {
		superseded = prev.conn
	}
	r.entries[user.ID] = registryEntry{
		user:     user,
		conn:     conn,
		status:   domain.StatusOnline,
		lastSeen: time.Now().UTC(),
	}
	return superseded
}

// Deregister removes the entry for userID only if connID still matches the
// current connection. A stale disconnect arriving after supersession must
// not remove the newer entry; it returns false and mutates nothing.
func (r *Registry) Deregister(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok || entry.conn.ID() != connID {
		return false
	}
	delete(r.entries, userID)
	return true
}

// Lookup resolves the live connection for userID, if any.
func (r *Registry) Lookup(userID string) (contract.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.conn, true
}

// SetStatus updates the ephemeral status of a present identity. No-op if
// the identity has no live connection.
func (r *Registry) SetStatus(userID string, status domain.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[userID]
	if !ok {
		return
	}
	entry.status = status
	entry.lastSeen = time.Now().UTC()
	r.entries[userID] = entry
}

// Snapshot returns the current presence entries ordered by user id, for
// bulk online-user queries and broadcast fan-out.
func (r *Registry) Snapshot() []domain.PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]domain.PresenceEntry, 0, len(r.entries))
	for id, entry := range r.entries {
		snapshot = append(snapshot, domain.PresenceEntry{
			UserID:   id,
			Username: entry.user.Username,
			ConnID:   entry.conn.ID(),
			Status:   entry.status,
			LastSeen: entry.lastSeen,
		})
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].UserID < snapshot[j].UserID
	})
	return snapshot
}

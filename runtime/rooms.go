package runtime

import "sync"

// Membership tracks room membership with both forward and reverse indexes.
// Forward: room -> set of userIDs (for room fan-out).
// Reverse: userID -> set of rooms (for O(1) cleanup on disconnect).
type Membership struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
	users map[string]map[string]struct{}
}

func NewMembership() *Membership {
	return &Membership{
		rooms: make(map[string]map[string]struct{}),
		users: make(map[string]map[string]struct{}),
	}
}

func (m *Membership) Join(room, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rooms[room] == nil {
		m.rooms[room] = make(map[string]struct{})
	}
	m.rooms[room][userID] = struct{}{}
	if m.users[userID] == nil {
		m.users[userID] = make(map[string]struct{})
	}
	m.users[userID][room] = struct{}{}
}

func (m *Membership) Leave(room, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(room, userID)
}

// LeaveAll removes a user from every room and returns the affected rooms.
// Called on disconnect; empty sets are pruned to avoid unbounded growth.
func (m *Membership) LeaveAll(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms, ok := m.users[userID]
	if !ok {
		return nil
	}
	affected := make([]string, 0, len(rooms))
	for room := range rooms {
		affected = append(affected, room)
		if members, ok := m.rooms[room]; ok {
			delete(members, userID)
			if len(members) == 0 {
				delete(m.rooms, room)
			}
		}
	}
	delete(m.users, userID)
	return affected
}

func (m *Membership) Members(room string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := m.rooms[room]
	if len(members) == 0 {
		return nil
	}
	result := make([]string, 0, len(members))
	for uid := range members {
		result = append(result, uid)
	}
	return result
}

func (m *Membership) RoomsOf(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := m.users[userID]
	if len(rooms) == 0 {
		return nil
	}
	result := make([]string, 0, len(rooms))
	for room := range rooms {
		result = append(result, room)
	}
	return result
}

func (m *Membership) leaveLocked(room, userID string) {
	if members, ok := m.rooms[room]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
	if rooms, ok := m.users[userID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(m.users, userID)
		}
	}
}

// Package domain contains core concepts of the chat system.
// This file defines the in-process presence entry.
package domain

import "time"

// PresenceEntry is the registry's record of one reachable identity.
// It is never persisted directly; only its Status/LastSeen projection is
// mirrored into the User record. At most one entry exists per identity:
// registering a newer connection supersedes the previous one.
type PresenceEntry struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	ConnID   string    `json:"connId"`
	Status   Status    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

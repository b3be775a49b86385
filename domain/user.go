// Package domain contains core concepts of the chat system.
// This file defines User entities and presence statuses.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Status is the ephemeral presence status of a user.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
)

// ValidStatus reports whether s is one of the known presence statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway, StatusBusy:
		return true
	}
	return false
}

// User is a chat account. Status and LastSeen are a best-effort durable
// mirror of the live presence registry and may be stale after a crash.
type User struct {
	ID        string
	Username  string
	Email     string
	Roles     []string
	Status    Status
	LastSeen  time.Time
	Active    bool
	CreatedAt time.Time
}

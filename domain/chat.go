// Package domain contains core concepts of the chat system.
// This file defines Chat entities and participant-pair canonicalization.
package domain

import "time"

// Chat is a conversation between participants. For direct chats exactly one
// Chat exists per unordered pair, guaranteed by the canonicalized pair key
// at the storage layer.
type Chat struct {
	ID            string
	Participants  []string
	IsGroup       bool
	LastMessageID string
	LastActivity  time.Time
	CreatedAt     time.Time
}

// HasParticipant reports whether id belongs to the chat.
func (c Chat) HasParticipant(id string) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// CanonicalPair sorts two participant identities into a fixed order so an
// unordered pair always yields the same key.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

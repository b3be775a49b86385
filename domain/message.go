// Package domain contains core concepts of the chat system.
// This file defines Message entities and their mutation rules.
package domain

import "time"

// EditWindow is how long after sending a message its author may still edit it.
// Enforced server-side.
const EditWindow = 15 * time.Minute

// MessageType classifies message content.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
	MessageAudio MessageType = "audio"
)

// Message is a persisted chat message. Deletion is always soft: a deleted
// message is excluded from every read path but never removed from storage.
type Message struct {
	ID         string
	ChatID     string
	SenderID   string
	ReceiverID string
	Content    string
	Type       MessageType
	Read       bool
	ReadAt     *time.Time
	Edited     bool
	EditedAt   *time.Time
	Deleted    bool
	DeletedAt  *time.Time
	SentAt     time.Time
}

// Editable reports whether the message may still be edited at the given
// instant. Only the window is checked here; ownership is the caller's rule.
func (m Message) Editable(now time.Time) bool {
	return now.Sub(m.SentAt) <= EditWindow
}

// Package event defines the server-to-connection event catalog.
// One tagged variant per wire event name; payload fields are exactly the
// published contract, so these structs marshal directly into envelopes.
package event

import "time"

// DomainEvent is anything that can be delivered to a live connection.
type DomainEvent interface {
	EventName() string
}

// Authenticated confirms a successful handshake.
type Authenticated struct {
	User UserView `json:"user"`
}

// UserView is the public projection of a user carried inside events.
type UserView struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

func (Authenticated) EventName() string { return "authenticated" }

// NewMessage is delivered to the recipient (and the chat room) of a send.
type NewMessage struct {
	MessageID  string    `json:"messageId"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	ChatID     string    `json:"chatId"`
}

func (NewMessage) EventName() string { return "new_message" }

// MessageSent is the confirmation returned to the sender once the message
// is durably recorded.
type MessageSent struct {
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId"`
	Timestamp time.Time `json:"timestamp"`
}

func (MessageSent) EventName() string { return "message_sent" }

// UserOnline announces a user coming online to all other connections.
type UserOnline struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

func (UserOnline) EventName() string { return "user_online" }

// UserOffline announces a disconnect to all other connections.
type UserOffline struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

func (UserOffline) EventName() string { return "user_offline" }

// UserStatusChanged announces an explicit status update (away, busy, ...).
type UserStatusChanged struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

func (UserStatusChanged) EventName() string { return "user_status_changed" }

// TypingStatus is an ephemeral signal; it is never persisted.
type TypingStatus struct {
	From      string    `json:"from"`
	FromName  string    `json:"fromName"`
	IsTyping  bool      `json:"isTyping"`
	Timestamp time.Time `json:"timestamp"`
}

func (TypingStatus) EventName() string { return "typing_status" }

// MessageRead notifies the original sender that their message was read.
type MessageRead struct {
	MessageID string    `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
	ChatID    string    `json:"chatId"`
	ReaderID  string    `json:"readerId"`
}

func (MessageRead) EventName() string { return "message_read" }

// Error carries a failure back to the originating connection only.
// Errors are never broadcast.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (Error) EventName() string { return "error" }

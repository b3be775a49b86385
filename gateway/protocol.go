// Package gateway accepts WebSocket connections, runs the identity
// handshake, and dispatches inbound events to the fan-out engine and the
// ephemeral signal router.
package gateway

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Inbound event names accepted from clients.
const (
	TypeAuthenticate = "authenticate"
	TypeJoinChat     = "join_chat"
	TypeSendMessage  = "send_message"
	TypeTyping       = "typing"
	TypeReadReceipt  = "read_receipt"
	TypeUpdateStatus = "update_status"
)

// Envelope is the wire frame for both directions: a tag plus the event
// payload. Unknown or malformed payloads are rejected here at the
// boundary; partial objects never propagate inward.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type AuthenticatePayload struct {
	Token string `json:"token" validate:"required"`
}

type JoinChatPayload struct {
	ChatID string `json:"chatId" validate:"required"`
}

type SendMessagePayload struct {
	To      string  `json:"to" validate:"required"`
	Content string  `json:"content" validate:"required"`
	Type    string  `json:"messageType,omitempty" validate:"omitempty,oneof=text image file audio"`
	ChatID  *string `json:"chatId,omitempty"`
}

type TypingPayload struct {
	To       string `json:"to" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

type ReadReceiptPayload struct {
	MessageID string `json:"messageId" validate:"required"`
	ChatID    string `json:"chatId" validate:"required"`
}

type UpdateStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=online away busy"`
}

var validate = validator.New()

// decodePayload unmarshals and validates one inbound payload. Any failure
// maps to ErrInvalidPayload so the caller can answer with a single stable
// error code.
func decodePayload[T any](raw json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	if err := validate.Struct(payload); err != nil {
		return payload, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return payload, nil
}

// encodeEvent wraps an outbound event into its wire envelope.
func encodeEvent(e event.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: e.EventName(), Payload: payload})
}

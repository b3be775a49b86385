// Package errors defines the sentinel errors of the chat backend and their
// stable machine-readable codes. Codes are part of the wire contract: they
// travel inside `error` events and must never change once published.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Handshake failures. Both reject the connection before any state mutation.
	ErrAuthFailed         = fmt.Errorf("authentication failed")
	ErrAccountDeactivated = fmt.Errorf("account deactivated")

	// Send pipeline failures, reported only to the originating connection.
	ErrSelfMessage             = fmt.Errorf("cannot send a message to yourself")
	ErrRecipientNotFound       = fmt.Errorf("recipient not found")
	ErrChatNotFoundOrForbidden = fmt.Errorf("chat not found or requester is not a participant")
	ErrEditWindowExpired       = fmt.Errorf("edit window expired")
	ErrNotFoundOrForbidden     = fmt.Errorf("message not found or operation forbidden")

	// ErrPersistence covers any failed or timed-out durable-store call.
	// A store outage degrades writes to this error; it never crashes the process.
	ErrPersistence = fmt.Errorf("persistence failure")

	ErrInvalidPayload = fmt.Errorf("invalid payload")

	// Account management.
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// CodeOf maps an error to its stable wire code. Unknown errors map to
// INTERNAL so internals are never leaked to clients.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrAuthFailed):
		return "AUTH_FAILED"
	case errors.Is(err, ErrAccountDeactivated):
		return "ACCOUNT_DEACTIVATED"
	case errors.Is(err, ErrSelfMessage):
		return "SELF_MESSAGE"
	case errors.Is(err, ErrRecipientNotFound):
		return "RECIPIENT_NOT_FOUND"
	case errors.Is(err, ErrChatNotFoundOrForbidden):
		return "CHAT_NOT_FOUND_OR_FORBIDDEN"
	case errors.Is(err, ErrEditWindowExpired):
		return "EDIT_WINDOW_EXPIRED"
	case errors.Is(err, ErrNotFoundOrForbidden):
		return "NOT_FOUND_OR_FORBIDDEN"
	case errors.Is(err, ErrPersistence):
		return "PERSISTENCE_FAILURE"
	case errors.Is(err, ErrInvalidPayload):
		return "INVALID_PAYLOAD"
	case errors.Is(err, ErrUserAlreadyExists):
		return "USER_ALREADY_EXISTS"
	case errors.Is(err, ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	case errors.Is(err, ErrInvalidPassword):
		return "INVALID_PASSWORD"
	default:
		return "INTERNAL"
	}
}

package services

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Typing_Signal_Reaches_The_Recipient(t *testing.T) {
	req := require.New(t)
	dispatcher := &RecordingDispatcher{}
	router := NewTypingRouter(slog.Default(), dispatcher)
	alice := domain.User{ID: uuid.NewString(), Username: "alice"}
	bobID := uuid.NewString()

	router.Typing(context.Background(), alice, bobID, true)

	req.Len(dispatcher.deliveries, 1)
	req.Equal("to", dispatcher.deliveries[0].kind)
	req.Equal(bobID, dispatcher.deliveries[0].target)
	signal, ok := dispatcher.deliveries[0].event.(event.TypingStatus)
	req.True(ok)
	req.Equal(alice.ID, signal.From)
	req.Equal("alice", signal.FromName)
	req.True(signal.IsTyping)
}

func Test_Typing_To_Offline_Recipient_Is_Silently_Dropped(t *testing.T) {
	req := require.New(t)
	dispatcher := &RecordingDispatcher{reachable: map[string]bool{}}
	router := NewTypingRouter(slog.Default(), dispatcher)
	alice := domain.User{ID: uuid.NewString(), Username: "alice"}

	// When the recipient is unreachable, nothing blows up and nothing
	// is queued for later
	router.Typing(context.Background(), alice, uuid.NewString(), false)

	req.Len(dispatcher.deliveries, 1)
	signal := dispatcher.deliveries[0].event.(event.TypingStatus)
	req.False(signal.IsTyping)
}

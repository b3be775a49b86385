package services

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newPresenceFixture(t *testing.T) (*PresenceBroadcaster, *RecordingDispatcher, repositories.IUserRepository, domain.User) {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	users := repositories.NewUserRepository(db)
	id, err := users.CreateUser("alice", "alice@example.com", "hash")
	req.NoError(err)

	dispatcher := &RecordingDispatcher{}
	mirror := workers.NewStatusMirror(slog.Default(), users, 16)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = mirror.Run(ctx) }()

	broadcaster := NewPresenceBroadcaster(dispatcher, mirror)
	return broadcaster, dispatcher, users, domain.User{ID: id, Username: "alice", Active: true}
}

func Test_AnnounceOnline_Broadcasts_And_Mirrors(t *testing.T) {
	req := require.New(t)
	broadcaster, dispatcher, users, alice := newPresenceFixture(t)

	broadcaster.AnnounceOnline(context.Background(), alice)

	// The broadcast excludes the user itself
	req.Len(dispatcher.deliveries, 1)
	req.Equal("broadcast", dispatcher.deliveries[0].kind)
	req.Equal(alice.ID, dispatcher.deliveries[0].target)
	online, ok := dispatcher.deliveries[0].event.(event.UserOnline)
	req.True(ok)
	req.Equal(string(domain.StatusOnline), online.Status)

	// The durable mirror catches up eventually
	req.Eventually(func() bool {
		user, err := users.GetUserByID(alice.ID)
		return err == nil && user.Status == domain.StatusOnline
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_AnnounceOffline_Broadcasts_And_Mirrors(t *testing.T) {
	req := require.New(t)
	broadcaster, dispatcher, users, alice := newPresenceFixture(t)

	broadcaster.AnnounceOffline(context.Background(), alice)

	req.Len(dispatcher.deliveries, 1)
	offline, ok := dispatcher.deliveries[0].event.(event.UserOffline)
	req.True(ok)
	req.Equal(string(domain.StatusOffline), offline.Status)

	req.Eventually(func() bool {
		user, err := users.GetUserByID(alice.ID)
		return err == nil && user.Status == domain.StatusOffline
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_AnnounceStatusChanged_Carries_The_New_Status(t *testing.T) {
	req := require.New(t)
	broadcaster, dispatcher, users, alice := newPresenceFixture(t)

	broadcaster.AnnounceStatusChanged(context.Background(), alice, domain.StatusBusy)

	req.Len(dispatcher.deliveries, 1)
	changed, ok := dispatcher.deliveries[0].event.(event.UserStatusChanged)
	req.True(ok)
	req.Equal(string(domain.StatusBusy), changed.Status)
	req.Equal(alice.Username, changed.Username)

	req.Eventually(func() bool {
		user, err := users.GetUserByID(alice.ID)
		return err == nil && user.Status == domain.StatusBusy
	}, 2*time.Second, 10*time.Millisecond)
}

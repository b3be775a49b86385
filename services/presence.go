package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/runtime/workers"
	"context"
	"time"
)

type IPresenceBroadcaster interface {
	AnnounceOnline(ctx context.Context, user domain.User)
	AnnounceOffline(ctx context.Context, user domain.User)
	AnnounceStatusChanged(ctx context.Context, user domain.User, status domain.Status)
}

// PresenceBroadcaster announces connection lifecycle changes to every other
// live connection and mirrors the new status into the durable store. The
// broadcast never waits on the durable write: the mirror intent is offered
// to a buffered worker and forgotten.
type PresenceBroadcaster struct {
	dispatcher contract.IDispatcher
	mirror     *workers.StatusMirror
}

func NewPresenceBroadcaster(dispatcher contract.IDispatcher, mirror *workers.StatusMirror) *PresenceBroadcaster {
	return &PresenceBroadcaster{dispatcher: dispatcher, mirror: mirror}
}

func (b *PresenceBroadcaster) AnnounceOnline(ctx context.Context, user domain.User) {
	now := time.Now().UTC()
	b.dispatcher.BroadcastExcept(ctx, user.ID, event.UserOnline{
		UserID:   user.ID,
		Username: user.Username,
		Status:   string(domain.StatusOnline),
		LastSeen: now,
	})
	b.mirror.Offer(workers.MirrorIntent{UserID: user.ID, Status: domain.StatusOnline, LastSeen: now})
}

func (b *PresenceBroadcaster) AnnounceOffline(ctx context.Context, user domain.User) {
	now := time.Now().UTC()
	b.dispatcher.BroadcastExcept(ctx, user.ID, event.UserOffline{
		UserID:   user.ID,
		Username: user.Username,
		Status:   string(domain.StatusOffline),
		LastSeen: now,
	})
	b.mirror.Offer(workers.MirrorIntent{UserID: user.ID, Status: domain.StatusOffline, LastSeen: now})
}

func (b *PresenceBroadcaster) AnnounceStatusChanged(ctx context.Context, user domain.User, status domain.Status) {
	now := time.Now().UTC()
	b.dispatcher.BroadcastExcept(ctx, user.ID, event.UserStatusChanged{
		UserID:   user.ID,
		Username: user.Username,
		Status:   string(status),
		LastSeen: now,
	})
	b.mirror.Offer(workers.MirrorIntent{UserID: user.ID, Status: status, LastSeen: now})
}

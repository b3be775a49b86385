package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"time"
)

type ITypingRouter interface {
	Typing(ctx context.Context, from domain.User, toUserID string, isTyping bool)
}

// TypingRouter forwards typing signals to the recipient's live connection.
// Nothing is persisted and the sender gets no acknowledgment either way:
// typing status is inherently lossy, so an unreachable recipient means the
// signal is silently dropped.
type TypingRouter struct {
	log        *slog.Logger
	dispatcher contract.IDispatcher
}

func NewTypingRouter(log *slog.Logger, dispatcher contract.IDispatcher) *TypingRouter {
	return &TypingRouter{log: log, dispatcher: dispatcher}
}

func (r *TypingRouter) Typing(ctx context.Context, from domain.User, toUserID string, isTyping bool) {
	delivered := r.dispatcher.DeliverTo(ctx, toUserID, event.TypingStatus{
		From:      from.ID,
		FromName:  from.Username,
		IsTyping:  isTyping,
		Timestamp: time.Now().UTC(),
	})
	if !delivered {
		r.log.Debug("Typing signal dropped, recipient offline",
			"from", from.ID, "to", toUserID)
	}
}

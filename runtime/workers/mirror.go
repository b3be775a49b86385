package workers

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"context"
	"log/slog"
	"time"
)

// MirrorIntent asks for a presence change to be reflected into the durable
// user record.
type MirrorIntent struct {
	UserID   string
	Status   domain.Status
	LastSeen time.Time
}

// StatusMirror drains mirror intents into the user repository. The
// presence broadcaster offers intents without waiting: broadcast ordering
// to live connections never depends on the durable write landing. The
// durable status is an acknowledged best-effort mirror, so a dropped or
// failed write is a log line, not an error.
type StatusMirror struct {
	log     *slog.Logger
	users   repositories.IUserRepository
	intents chan MirrorIntent
}

func NewStatusMirror(log *slog.Logger, users repositories.IUserRepository, bufferSize int) *StatusMirror {
	return &StatusMirror{
		log:     log,
		users:   users,
		intents: make(chan MirrorIntent, bufferSize),
	}
}

// Offer enqueues an intent without blocking. On a full buffer the intent is
// dropped and logged.
func (w *StatusMirror) Offer(intent MirrorIntent) {
	select {
	case w.intents <- intent:
	default:
		w.log.Warn("Status mirror buffer full, dropping intent",
			"user_id", intent.UserID, "status", intent.Status)
	}
}

func (w *StatusMirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping status mirror")
			return nil
		case intent := <-w.intents:
			if err := w.users.UpdateStatus(intent.UserID, intent.Status, intent.LastSeen); err != nil {
				w.log.Warn("Failed to mirror status into store",
					"user_id", intent.UserID, "status", intent.Status, "error", err)
			}
		}
	}
}

package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"time"
)

// Dispatcher turns delivery intents into writes on live connections.
// Handlers never touch other users' connections directly: they name an
// identity, the dispatcher resolves reachability through the registry.
//
// Delivery is best-effort by policy: at most one attempt, no retry, no
// queue. An unreachable recipient is a debug log line, never an error
// surfaced to the sender.
type Dispatcher struct {
	log      *slog.Logger
	registry contract.IRegistry
	rooms    contract.IMembership
	timeout  time.Duration
}

func NewDispatcher(log *slog.Logger, registry contract.IRegistry,
	rooms contract.IMembership, timeout time.Duration) *Dispatcher {
	return &Dispatcher{log: log, registry: registry, rooms: rooms, timeout: timeout}
}

// DeliverTo writes e to the live connection of userID, if any.
// Returns false on a best-effort miss (identity unreachable).
func (d *Dispatcher) DeliverTo(ctx context.Context, userID string, e event.DomainEvent) bool {
	conn, ok := d.registry.Lookup(userID)
	if !ok {
		d.log.Debug("Delivery skipped, recipient unreachable",
			"user_id", userID, "event", e.EventName())
		return false
	}
	d.consume(ctx, conn, userID, e)
	return true
}

// BroadcastExcept fans e out to every registered connection except
// exceptUserID, using a registry snapshot taken at call time.
func (d *Dispatcher) BroadcastExcept(ctx context.Context, exceptUserID string, e event.DomainEvent) {
	for _, entry := range d.registry.Snapshot() {
		if entry.UserID == exceptUserID {
			continue
		}
		if conn, ok := d.registry.Lookup(entry.UserID); ok {
			d.consume(ctx, conn, entry.UserID, e)
		}
	}
}

// DeliverRoom emits e to every reachable member of a room except
// exceptUserID. A member both directly reachable and in the room may see
// the event twice; duplicate suppression by message id is the client's job.
func (d *Dispatcher) DeliverRoom(ctx context.Context, room, exceptUserID string, e event.DomainEvent) {
	for _, userID := range d.rooms.Members(room) {
		if userID == exceptUserID {
			continue
		}
		if conn, ok := d.registry.Lookup(userID); ok {
			d.consume(ctx, conn, userID, e)
		}
	}
}

func (d *Dispatcher) consume(ctx context.Context, conn contract.Connection, userID string, e event.DomainEvent) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := conn.Consume(ctx, e); err != nil {
		d.log.Warn("Sink rejected event",
			"user_id", userID, "event", e.EventName(), "error", err)
	}
}

//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself; supervision handles panics and restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// used for logging and supervision without forcing a naming method on the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives events destined for one consumer. Consume must not
// block indefinitely; delivery is best-effort.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Connection is a live client connection handle: a sink plus a unique
// identifier used by the registry's supersession guard.
type Connection interface {
	EventSink
	ID() string
}

// IRegistry is the authoritative "who is reachable right now" table.
// All operations are safe under arbitrary interleaving from concurrent
// connection lifecycles.
type IRegistry interface {
	Register(user domain.User, conn Connection) (superseded Connection)
	Deregister(userID, connID string) bool
	Lookup(userID string) (Connection, bool)
	SetStatus(userID string, status domain.Status)
	Snapshot() []domain.PresenceEntry
}

// IMembership tracks which identities joined which chat rooms. Rooms are
// membership facts, not exclusive connection states.
type IMembership interface {
	Join(room, userID string)
	Leave(room, userID string)
	LeaveAll(userID string) []string
	Members(room string) []string
	RoomsOf(userID string) []string
}

// IDispatcher resolves reachability and writes events to live connections.
// It centralizes the best-effort delivery policy: at most one attempt,
// no retry, no queue.
type IDispatcher interface {
	DeliverTo(ctx context.Context, userID string, e event.DomainEvent) bool
	BroadcastExcept(ctx context.Context, exceptUserID string, e event.DomainEvent)
	DeliverRoom(ctx context.Context, room, exceptUserID string, e event.DomainEvent)
}

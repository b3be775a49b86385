package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	id string
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func (s Sink) ID() string {
	return s.id
}

func newUser() domain.User {
	return domain.User{ID: uuid.NewString(), Username: "alice", Active: true}
}

func TestRegistry_Register_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	user := newUser()
	sink := Sink{id: uuid.NewString()}

	// Given an empty registry
	req.Empty(registry.Snapshot())

	// When a connection registers
	superseded := registry.Register(user, sink)

	// Then nothing is superseded and the identity is reachable
	req.Nil(superseded)
	conn, ok := registry.Lookup(user.ID)
	req.True(ok)
	req.Equal(sink.id, conn.ID())
	req.Len(registry.Snapshot(), 1)
}

func TestRegistry_Register_Newest_Connection_Wins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	user := newUser()
	first := Sink{id: uuid.NewString()}
	second := Sink{id: uuid.NewString()}

	// Given an identity already connected
	registry.Register(user, first)

	// When the same identity connects again
	superseded := registry.Register(user, second)

	// Then the previous connection is returned for closing
	// And only the newest one is reachable
	req.NotNil(superseded)
	req.Equal(first.id, superseded.ID())
	conn, ok := registry.Lookup(user.ID)
	req.True(ok)
	req.Equal(second.id, conn.ID())
	req.Len(registry.Snapshot(), 1)
}

func TestRegistry_Deregister_Removes_Entry(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	user := newUser()
	sink := Sink{id: uuid.NewString()}
	registry.Register(user, sink)

	// When the current connection deregisters
	removed := registry.Deregister(user.ID, sink.id)

	// Then the identity is unreachable
	req.True(removed)
	_, ok := registry.Lookup(user.ID)
	req.False(ok)
	req.Empty(registry.Snapshot())
}

func TestRegistry_Stale_Deregister_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	user := newUser()
	old := Sink{id: uuid.NewString()}
	current := Sink{id: uuid.NewString()}

	// Given a superseded connection
	registry.Register(user, old)
	registry.Register(user, current)

	// When the superseded connection's disconnect arrives late
	removed := registry.Deregister(user.ID, old.id)

	// Then the newer entry is untouched
	req.False(removed)
	conn, ok := registry.Lookup(user.ID)
	req.True(ok)
	req.Equal(current.id, conn.ID())
}

func TestRegistry_SetStatus_Unknown_Identity_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.SetStatus(uuid.NewString(), domain.StatusAway)

	req.Empty(registry.Snapshot())
}

func TestRegistry_SetStatus_Updates_Snapshot(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	user := newUser()
	registry.Register(user, Sink{id: uuid.NewString()})

	registry.SetStatus(user.ID, domain.StatusBusy)

	snapshot := registry.Snapshot()
	req.Len(snapshot, 1)
	req.Equal(domain.StatusBusy, snapshot[0].Status)
}

func TestRegistry_Concurrent_Registers_Keep_One_Entry_Per_Identity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	users := 10
	connectionsPerUser := 50

	// When many connections race for the same identities
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user-%d", u)
		for c := 0; c < connectionsPerUser; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				registry.Register(domain.User{ID: userID}, Sink{id: uuid.NewString()})
			}()
		}
	}
	wg.Wait()

	// Then at most one entry per identity survives
	req.Len(registry.Snapshot(), users)
}

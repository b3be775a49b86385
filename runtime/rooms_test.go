package runtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMembership_Join_And_Members(t *testing.T) {
	req := require.New(t)
	membership := NewMembership()
	room := uuid.NewString()
	alice := uuid.NewString()
	bob := uuid.NewString()

	membership.Join(room, alice)
	membership.Join(room, bob)

	members := membership.Members(room)
	req.Len(members, 2)
	req.Contains(members, alice)
	req.Contains(members, bob)
	req.Equal([]string{room}, membership.RoomsOf(alice))
}

func TestMembership_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	membership := NewMembership()
	room := uuid.NewString()
	alice := uuid.NewString()

	membership.Join(room, alice)
	membership.Join(room, alice)

	req.Len(membership.Members(room), 1)
}

func TestMembership_Leave_Prunes_Empty_Room(t *testing.T) {
	req := require.New(t)
	membership := NewMembership()
	room := uuid.NewString()
	alice := uuid.NewString()
	membership.Join(room, alice)

	membership.Leave(room, alice)

	req.Nil(membership.Members(room))
	req.Nil(membership.RoomsOf(alice))
}

func TestMembership_LeaveAll_Removes_User_Everywhere(t *testing.T) {
	req := require.New(t)
	membership := NewMembership()
	room1 := uuid.NewString()
	room2 := uuid.NewString()
	alice := uuid.NewString()
	bob := uuid.NewString()

	// Given a user in two rooms, one shared
	membership.Join(room1, alice)
	membership.Join(room2, alice)
	membership.Join(room2, bob)

	// When the user disconnects
	affected := membership.LeaveAll(alice)

	// Then both rooms are affected, the shared room keeps its other member
	req.Len(affected, 2)
	req.Nil(membership.Members(room1))
	req.Equal([]string{bob}, membership.Members(room2))
	req.Nil(membership.RoomsOf(alice))
}

func TestMembership_LeaveAll_Unknown_User(t *testing.T) {
	req := require.New(t)
	membership := NewMembership()

	req.Nil(membership.LeaveAll(uuid.NewString()))
}

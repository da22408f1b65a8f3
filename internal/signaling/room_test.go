package signaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomMembership(t *testing.T) {
	room := newRoom("r1", "u1")

	assert.True(t, room.IsEmpty())
	assert.False(t, room.IsFull())
	assert.True(t, room.IsCreator("u1"))
	assert.False(t, room.IsCreator("u2"))

	room.AddUser(&User{ID: "u1", ConnectionID: "c1"})
	assert.False(t, room.IsEmpty())
	assert.False(t, room.IsFull())
	assert.True(t, room.HasUser("u1"))

	room.AddUser(&User{ID: "u2", ConnectionID: "c2"})
	assert.True(t, room.IsFull())
	assert.Len(t, room.Users(), 2)

	room.RemoveUser("u2")
	assert.False(t, room.IsFull())
	assert.False(t, room.HasUser("u2"))

	// removing an absent user is a no-op
	room.RemoveUser("u2")
	assert.Len(t, room.Users(), 1)
}

func TestRoomInfo(t *testing.T) {
	room := newRoom("r1", "u1")
	room.AddUser(&User{ID: "u1", ConnectionID: "c1", DisplayName: "Alice"})

	info := room.Info()
	require.Equal(t, "r1", info.ID)
	require.Equal(t, "u1", info.CreatorID)
	require.Equal(t, 1, info.UserCount)
	require.Equal(t, DefaultMaxUsers, info.MaxUsers)
	require.False(t, info.CreatedAt.IsZero())
}

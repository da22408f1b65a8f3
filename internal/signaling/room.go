package signaling

import (
	"time"

	"github.com/pintr/p2p-videocall/internal/protocol"
)

// DefaultMaxUsers is the room capacity. A call always pairs exactly two
// participants.
const DefaultMaxUsers = 2

// User is one room member. ID is the stable user identity chosen by the
// client; ConnectionID is the transport connection currently bound to it and
// changes on every reconnect.
type User struct {
	ID           string
	ConnectionID string
	DisplayName  string
	RoomID       string
	JoinedAt     time.Time
}

// Info returns the wire representation of the user.
func (u *User) Info() protocol.UserInfo {
	return protocol.UserInfo{
		ID:           u.ID,
		ConnectionID: u.ConnectionID,
		DisplayName:  u.DisplayName,
		RoomID:       u.RoomID,
		JoinedAt:     u.JoinedAt,
	}
}

// Room pairs up to MaxUsers participants for one call. CreatorID is set once
// at creation and never changes. Rooms carry no locking of their own: all
// mutations go through the hub goroutine, which is the single exclusion
// domain for room state.
type Room struct {
	ID        string
	CreatorID string
	CreatedAt time.Time
	MaxUsers  int

	users map[string]*User

	// touchedAt tracks the last membership change; the hub expires rooms
	// that sit below capacity for too long.
	touchedAt time.Time
}

func newRoom(id, creatorID string) *Room {
	now := time.Now()
	return &Room{
		ID:        id,
		CreatorID: creatorID,
		CreatedAt: now,
		MaxUsers:  DefaultMaxUsers,
		users:     make(map[string]*User),
		touchedAt: now,
	}
}

// IsCreator reports whether the given user created the room.
func (r *Room) IsCreator(userID string) bool {
	return userID == r.CreatorID
}

// AddUser inserts the user unconditionally. Callers must check IsFull first
// within the same hub operation.
func (r *Room) AddUser(u *User) {
	r.users[u.ID] = u
	r.touchedAt = time.Now()
}

// RemoveUser deletes the user if present. Idempotent.
func (r *Room) RemoveUser(userID string) {
	if _, ok := r.users[userID]; !ok {
		return
	}
	delete(r.users, userID)
	r.touchedAt = time.Now()
}

// User returns the member with the given id, or nil.
func (r *Room) User(userID string) *User {
	return r.users[userID]
}

// HasUser reports whether the given user id is a member.
func (r *Room) HasUser(userID string) bool {
	_, ok := r.users[userID]
	return ok
}

// Users returns the current members.
func (r *Room) Users() []*User {
	out := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out
}

func (r *Room) IsEmpty() bool {
	return len(r.users) == 0
}

func (r *Room) IsFull() bool {
	return len(r.users) >= r.MaxUsers
}

// Info returns the wire representation of the room.
func (r *Room) Info() protocol.RoomInfo {
	return protocol.RoomInfo{
		ID:        r.ID,
		CreatorID: r.CreatorID,
		UserCount: len(r.users),
		CreatedAt: r.CreatedAt,
		MaxUsers:  r.MaxUsers,
	}
}

package signaling

import "sync"

// Registry is the process-wide map of room id to room. It is the sole owner
// of room lifetime: rooms are created here and removed here, and a room that
// becomes empty never outlives the operation that emptied it.
//
// The registry guards its map for concurrent lookups; room contents are
// mutated only from the hub goroutine.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room with the given id, creating it with creatorID
// as creator if absent. Concurrent callers racing on the same id always
// observe the same single instance.
func (g *Registry) GetOrCreate(roomID, creatorID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if room, ok := g.rooms[roomID]; ok {
		return room
	}
	room := newRoom(roomID, creatorID)
	g.rooms[roomID] = room
	return room
}

// Lookup returns the room with the given id, if present.
func (g *Registry) Lookup(roomID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[roomID]
	return room, ok
}

// Remove deletes the room. No-op if absent.
func (g *Registry) Remove(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, roomID)
}

// Rooms returns a snapshot of all rooms.
func (g *Registry) Rooms() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		out = append(out, room)
	}
	return out
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

package signaling

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pintr/p2p-videocall/internal/protocol"
)

// ICEConfigSource hands out the current connectivity-server credentials.
// Current returns nil while no config has been fetched yet.
type ICEConfigSource interface {
	Current() []protocol.ICEServer
}

// Options tunes hub behavior.
type Options struct {
	// RoomTTL expires rooms that sit below capacity for this long. Zero
	// disables expiry.
	RoomTTL time.Duration

	// SweepInterval is how often expiry runs. Defaults to one minute.
	SweepInterval time.Duration
}

// inbound couples a decoded message with the session it arrived on.
type inbound struct {
	session *Session
	msg     *protocol.Message
}

// Hub owns the room registry and all active sessions. Its Run goroutine is
// the single exclusion domain for registry and room mutations: every join,
// relay, leave and expiry executes there, so the check-then-add sequence in a
// join can never race with another joiner.
type Hub struct {
	Register   chan *Session
	Unregister chan *Session
	Inbound    chan inbound

	registry *Registry
	sessions map[string]*Session
	ice      ICEConfigSource
	opts     Options
	quit     chan struct{}
	stopOnce sync.Once
	log      zerolog.Logger
}

// NewHub creates a hub. ice may be nil, in which case joined payloads always
// carry null iceServers.
func NewHub(log zerolog.Logger, ice ICEConfigSource, opts Options) *Hub {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	return &Hub{
		Register:   make(chan *Session),
		Unregister: make(chan *Session),
		Inbound:    make(chan inbound),
		registry:   NewRegistry(),
		sessions:   make(map[string]*Session),
		ice:        ice,
		opts:       opts,
		quit:       make(chan struct{}),
		log:        log,
	}
}

// Registry exposes the room registry for inspection.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run processes registration, inbound messages and room expiry until Stop is
// called.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			for id, s := range h.sessions {
				delete(h.sessions, id)
				close(s.send)
				if s.conn != nil {
					s.conn.Close()
				}
			}
			return

		case s := <-h.Register:
			h.sessions[s.ID] = s
			h.log.Info().Str("conn", s.ID).Msg("session registered")

		case s := <-h.Unregister:
			h.dropSession(s)

		case in := <-h.Inbound:
			h.dispatch(in.session, in.msg)

		case <-ticker.C:
			if h.opts.RoomTTL > 0 {
				h.expireIdleRooms()
			}
		}
	}
}

// Stop shuts the hub down and closes every session. Idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
}

// Done is closed when the hub shuts down. The session pumps and the upgrade
// handler select on it so they never block handing work to a stopped hub.
func (h *Hub) Done() <-chan struct{} {
	return h.quit
}

// dropSession removes a dead connection. Safe to call more than once for the
// same session; both explicit leave-then-disconnect and double unregistration
// end up here.
func (h *Hub) dropSession(s *Session) {
	if _, ok := h.sessions[s.ID]; !ok {
		return
	}
	delete(h.sessions, s.ID)
	h.handleLeave(s)
	close(s.send)
	h.log.Info().Str("conn", s.ID).Msg("session unregistered")
}

// dispatch routes one inbound message. Offer, answer and candidate are
// opaque: the payload is relayed untouched.
func (h *Hub) dispatch(s *Session, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeJoin:
		h.handleJoin(s, msg)

	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeCandidate:
		h.relay(s, msg)

	case protocol.TypeLeave:
		h.handleLeave(s)

	default:
		h.log.Warn().Str("conn", s.ID).Str("type", msg.Type).Msg("unknown message type")
	}
}

// handleJoin runs the full join sequence: stale-entry eviction for a rejoin,
// room creation, the capacity check before insertion, the joined reply and
// the ready broadcast once the room fills up.
func (h *Hub) handleJoin(s *Session, msg *protocol.Message) {
	var p protocol.JoinPayload
	if err := msg.DecodePayload(&p); err != nil || p.RoomID == "" || p.UserID == "" {
		h.sendError(s, "invalid join payload")
		return
	}

	if s.RoomID != "" && (s.RoomID != p.RoomID || s.UserID != p.UserID) {
		// A user is a member of at most one room. Rebinding to a
		// different room or identity releases the old slot first, so
		// its occupant sees a normal leave.
		h.handleLeave(s)
	}

	room, known := h.registry.Lookup(p.RoomID)
	if known && room.HasUser(p.UserID) {
		// Rejoin: the same stable user id arrived on a new connection.
		// Evict the stale entry before admitting the new one.
		h.evictStale(room, p.UserID, s)
	}
	if !known {
		room = h.registry.GetOrCreate(p.RoomID, p.UserID)
		h.log.Info().Str("room", room.ID).Str("creator", p.UserID).Msg("room created")
	}

	if room.IsFull() {
		s.queue(&protocol.Message{Type: protocol.TypeFull})
		h.log.Info().Str("room", room.ID).Str("user", p.UserID).Msg("join rejected, room full")
		return
	}

	user := &User{
		ID:           p.UserID,
		ConnectionID: s.ID,
		DisplayName:  p.DisplayName,
		RoomID:       room.ID,
		JoinedAt:     time.Now(),
	}
	room.AddUser(user)
	s.UserID = user.ID
	s.RoomID = room.ID

	var servers []protocol.ICEServer
	if p.WantsConfig || room.IsFull() {
		servers = h.iceServers()
		if servers == nil {
			h.sendLog(s, "connectivity server config not yet available")
		}
	}

	joined, err := protocol.NewMessage(protocol.TypeJoined, protocol.JoinedPayload{
		User:       user.Info(),
		Room:       room.Info(),
		IsCreator:  room.IsCreator(user.ID),
		ICEServers: servers,
	})
	if err != nil {
		h.sendError(s, "internal error")
		return
	}
	s.queue(joined)
	h.log.Info().Str("room", room.ID).Str("user", user.ID).Bool("creator", room.IsCreator(user.ID)).Msg("user joined")

	if room.IsFull() {
		// The pre-existing occupants offer; the joiner never receives
		// ready from its own join.
		ready, err := protocol.NewMessage(protocol.TypeReady, protocol.ReadyPayload{Offerer: true})
		if err != nil {
			return
		}
		for _, other := range room.Users() {
			if other.ID == user.ID {
				continue
			}
			if peer, ok := h.sessions[other.ConnectionID]; ok {
				peer.queue(ready)
				h.sendLog(peer, fmt.Sprintf("%s joined, room %s is ready", user.DisplayName, room.ID))
			}
		}
	}
}

// evictStale removes a leftover membership entry for userID and unbinds the
// dead connection that owned it, without the leave broadcast: from the peers'
// point of view the user never left.
func (h *Hub) evictStale(room *Room, userID string, replacement *Session) {
	stale := room.User(userID)
	room.RemoveUser(userID)
	if stale == nil {
		return
	}
	if old, ok := h.sessions[stale.ConnectionID]; ok && old.ID != replacement.ID {
		old.UserID = ""
		old.RoomID = ""
		h.dropSession(old)
	}
	h.log.Info().Str("room", room.ID).Str("user", userID).Msg("evicted stale membership")
}

// relay forwards an opaque payload to every other occupant of the sender's
// room, tagged with the sender's user id. It never echoes back to the sender.
func (h *Hub) relay(s *Session, msg *protocol.Message) {
	if s.RoomID == "" || s.UserID == "" {
		h.sendError(s, "you must join a room first")
		return
	}
	room, ok := h.registry.Lookup(s.RoomID)
	if !ok {
		h.sendError(s, "room not found")
		return
	}

	out := &protocol.Message{Type: msg.Type, Payload: msg.Payload, From: s.UserID}
	for _, other := range room.Users() {
		if other.ID == s.UserID {
			continue
		}
		if peer, ok := h.sessions[other.ConnectionID]; ok {
			peer.queue(out)
		}
	}
}

// handleLeave releases the session's room slot, notifies the remaining
// occupants and deletes the room once it is empty. No-op for unbound
// sessions, so it is safe for both an explicit leave message and the
// disconnect cleanup path to call it.
func (h *Hub) handleLeave(s *Session) {
	if s.RoomID == "" {
		return
	}
	roomID, userID := s.RoomID, s.UserID
	s.RoomID = ""
	s.UserID = ""

	room, ok := h.registry.Lookup(roomID)
	if !ok {
		return
	}
	room.RemoveUser(userID)

	left, err := protocol.NewMessage(protocol.TypeLeave, protocol.LeavePayload{UserID: userID})
	if err == nil {
		for _, other := range room.Users() {
			if peer, ok := h.sessions[other.ConnectionID]; ok {
				peer.queue(left)
			}
		}
	}

	if room.IsEmpty() {
		h.registry.Remove(roomID)
		h.log.Info().Str("room", roomID).Msg("room deleted")
	}
	h.log.Info().Str("room", roomID).Str("user", userID).Msg("user left")
}

// expireIdleRooms drops rooms that stayed below capacity past the TTL.
// Occupants are told via a log diagnostic and unbound; their connections stay
// open so they can join a fresh room.
func (h *Hub) expireIdleRooms() {
	cutoff := time.Now().Add(-h.opts.RoomTTL)
	for _, room := range h.registry.Rooms() {
		if room.IsFull() || room.touchedAt.After(cutoff) {
			continue
		}
		for _, u := range room.Users() {
			if peer, ok := h.sessions[u.ConnectionID]; ok {
				h.sendLog(peer, fmt.Sprintf("room %s expired while waiting for a peer", room.ID))
				peer.UserID = ""
				peer.RoomID = ""
			}
			room.RemoveUser(u.ID)
		}
		h.registry.Remove(room.ID)
		h.log.Info().Str("room", room.ID).Msg("room expired")
	}
}

func (h *Hub) iceServers() []protocol.ICEServer {
	if h.ice == nil {
		return nil
	}
	return h.ice.Current()
}

func (h *Hub) sendError(s *Session, text string) {
	msg, err := protocol.NewMessage(protocol.TypeError, protocol.ErrorPayload{Error: text})
	if err != nil {
		return
	}
	s.queue(msg)
}

func (h *Hub) sendLog(s *Session, lines ...string) {
	msg, err := protocol.NewMessage(protocol.TypeLog, protocol.LogPayload{Messages: lines})
	if err != nil {
		return
	}
	s.queue(msg)
}

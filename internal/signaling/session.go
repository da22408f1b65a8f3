package signaling

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pintr/p2p-videocall/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB is enough for SDP
	// payloads.
	maxMessageSize = 64 * 1024

	// Inbound message budget per connection. Signaling is low-volume;
	// anything past a candidate burst is abuse.
	inboundRate  = 20
	inboundBurst = 40

	sendQueueSize = 256
)

// Session binds one websocket connection to its current user and room. The
// hub looks sessions up by connection id on every inbound message; UserID and
// RoomID stay empty until a join succeeds and are owned by the hub goroutine.
type Session struct {
	// ID is the connection id. It changes on every reconnect, unlike the
	// stable user id carried in join payloads.
	ID string

	UserID string
	RoomID string

	hub     *Hub
	conn    *websocket.Conn
	send    chan *protocol.Message
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewSession wraps an upgraded websocket connection.
func NewSession(hub *Hub, conn *websocket.Conn, log zerolog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:      id,
		hub:     hub,
		conn:    conn,
		send:    make(chan *protocol.Message, sendQueueSize),
		limiter: rate.NewLimiter(inboundRate, inboundBurst),
		log:     log.With().Str("conn", id).Logger(),
	}
}

// queue enqueues an outbound message without blocking the hub. A full queue
// means the client stopped reading; the message is dropped and the connection
// will die on its next ping.
func (s *Session) queue(msg *protocol.Message) {
	select {
	case s.send <- msg:
	default:
		s.log.Warn().Str("type", msg.Type).Msg("send queue full, dropping message")
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// There is at most one reader per connection: all reads happen on this
// goroutine. Exiting the loop for any reason, including an abrupt disconnect,
// funnels through hub unregistration so that room cleanup happens on the same
// path as an explicit leave.
func (s *Session) ReadPump() {
	defer func() {
		select {
		case s.hub.Unregister <- s:
		case <-s.hub.Done():
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("unexpected close")
			}
			break
		}

		if !s.limiter.Allow() {
			s.log.Warn().Msg("inbound rate limit exceeded, closing connection")
			break
		}

		select {
		case s.hub.Inbound <- inbound{session: s, msg: &msg}:
		case <-s.hub.Done():
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection and sends
// periodic pings. There is at most one writer per connection: all writes
// happen on this goroutine.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the session.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				s.log.Warn().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

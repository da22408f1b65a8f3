package protocol

import (
	"encoding/json"
	"time"

	"github.com/pion/webrtc/v4"
)

// Message is the envelope for all messages exchanged between client and
// relay. From is set by the relay when it tags a relayed message with the
// sending user's identity; clients leave it empty.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	From    string          `json:"from,omitempty"`
}

// Message type constants.
const (
	TypeJoin      = "join"
	TypeLeave     = "leave"
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"

	TypeJoined = "joined"
	TypeFull   = "full"
	TypeReady  = "ready"
	TypeError  = "error"
	TypeLog    = "log"
)

// NewMessage builds an envelope around the given payload. A nil payload
// produces a body-less message.
func NewMessage(msgType string, payload any) (*Message, error) {
	m := &Message{Type: msgType}
	if payload == nil {
		return m, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	m.Payload = raw
	return m, nil
}

// DecodePayload unmarshals the message payload into v.
func (m *Message) DecodePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// JoinPayload is sent by a client to enter a room. UserID is stable per
// client instance and survives transport reconnects.
type JoinPayload struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	WantsConfig bool   `json:"wantsConfig"`
}

// UserInfo is the serialized form of a room member.
type UserInfo struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connectionId"`
	DisplayName  string    `json:"displayName"`
	RoomID       string    `json:"roomId"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// RoomInfo is the serialized form of a room.
type RoomInfo struct {
	ID        string    `json:"id"`
	CreatorID string    `json:"creatorId"`
	UserCount int       `json:"userCount"`
	CreatedAt time.Time `json:"createdAt"`
	MaxUsers  int       `json:"maxUsers"`
}

// ICEServer describes one connectivity (STUN/TURN) server entry handed to
// clients. Credentials are optional and only present for TURN.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// JoinedPayload confirms a successful join to the joining connection only.
// ICEServers is null when the client did not ask for config and the room is
// not yet full, or when the credential fetch has not completed.
type JoinedPayload struct {
	User       UserInfo    `json:"user"`
	Room       RoomInfo    `json:"room"`
	IsCreator  bool        `json:"isCreator"`
	ICEServers []ICEServer `json:"iceServers"`
}

// ReadyPayload tells a pre-existing occupant that the room reached capacity.
// Offerer is always true for the receiver of this message: the side that was
// already in the room creates the offer.
type ReadyPayload struct {
	Offerer bool `json:"offerer"`
}

// SDPPayload carries an offer or answer session description. The envelope
// type distinguishes the two.
type SDPPayload struct {
	SDP string `json:"sdp"`
}

// CandidatePayload carries one ICE candidate.
type CandidatePayload struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// LeavePayload notifies remaining occupants that a user left the room.
type LeavePayload struct {
	UserID string `json:"userId"`
}

// ErrorPayload carries a protocol-level rejection.
type ErrorPayload struct {
	Error string `json:"error"`
}

// LogPayload carries diagnostic lines from the relay.
type LogPayload struct {
	Messages []string `json:"messages"`
}

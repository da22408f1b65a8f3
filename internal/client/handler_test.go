package client

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pintr/p2p-videocall/internal/protocol"
)

func runHandler(t *testing.T) (chan *protocol.Message, *Handler) {
	t.Helper()
	in := make(chan *protocol.Message, 8)
	h := NewHandler(in, zerolog.Nop())
	go h.Run()
	return in, h
}

func mustMessage(t *testing.T, msgType string, payload any) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(msgType, payload)
	require.NoError(t, err)
	return msg
}

func TestHandlerRoutesByType(t *testing.T) {
	in, h := runHandler(t)

	in <- mustMessage(t, protocol.TypeJoined, protocol.JoinedPayload{
		User:      protocol.UserInfo{ID: "u1", DisplayName: "alice"},
		Room:      protocol.RoomInfo{ID: "r1", UserCount: 1, MaxUsers: 2},
		IsCreator: true,
	})
	joined := <-h.Joined
	assert.Equal(t, "u1", joined.User.ID)
	assert.True(t, joined.IsCreator)

	in <- mustMessage(t, protocol.TypeReady, protocol.ReadyPayload{Offerer: true})
	ready := <-h.Ready
	assert.True(t, ready.Offerer)

	offer := mustMessage(t, protocol.TypeOffer, protocol.SDPPayload{SDP: "v=0 offer"})
	offer.From = "u2"
	in <- offer
	remote := <-h.Offer
	assert.Equal(t, "u2", remote.From)
	assert.Equal(t, "v=0 offer", remote.SDP)

	in <- mustMessage(t, protocol.TypeAnswer, protocol.SDPPayload{SDP: "v=0 answer"})
	assert.Equal(t, "v=0 answer", (<-h.Answer).SDP)

	in <- mustMessage(t, protocol.TypeCandidate, protocol.CandidatePayload{
		Candidate: webrtc.ICECandidateInit{Candidate: "candidate:1"},
	})
	assert.Equal(t, "candidate:1", (<-h.Candidate).Candidate)

	in <- mustMessage(t, protocol.TypeLeave, protocol.LeavePayload{UserID: "u2"})
	assert.Equal(t, "u2", <-h.PeerLeft)

	in <- mustMessage(t, protocol.TypeError, protocol.ErrorPayload{Error: "room is full"})
	assert.Equal(t, "room is full", <-h.Errors)

	in <- mustMessage(t, protocol.TypeFull, nil)
	<-h.Full

	close(in)
}

func TestHandlerReadyWithoutPayload(t *testing.T) {
	in, h := runHandler(t)
	defer close(in)

	in <- &protocol.Message{Type: protocol.TypeReady}
	ready := <-h.Ready
	require.NotNil(t, ready)
	assert.False(t, ready.Offerer)
}

func TestHandlerSkipsMalformedPayloads(t *testing.T) {
	in, h := runHandler(t)
	defer close(in)

	in <- &protocol.Message{Type: protocol.TypeOffer, Payload: []byte(`{bad json`)}
	in <- &protocol.Message{Type: "unknown-type"}
	in <- mustMessage(t, protocol.TypeOffer, protocol.SDPPayload{SDP: "v=0 good"})

	select {
	case remote := <-h.Offer:
		assert.Equal(t, "v=0 good", remote.SDP)
	case <-time.After(time.Second):
		t.Fatal("valid offer never delivered")
	}
}

func TestHandlerClosesAllChannelsOnStreamEnd(t *testing.T) {
	in, h := runHandler(t)
	close(in)

	deadline := time.After(time.Second)
	closed := func(ok bool) {
		t.Helper()
		assert.False(t, ok)
	}
	select {
	case _, ok := <-h.Joined:
		closed(ok)
	case <-deadline:
		t.Fatal("channels never closed")
	}
	_, ok := <-h.Ready
	closed(ok)
	_, ok = <-h.Full
	closed(ok)
	_, ok = <-h.Offer
	closed(ok)
	_, ok = <-h.Answer
	closed(ok)
	_, ok = <-h.Candidate
	closed(ok)
	_, ok = <-h.PeerLeft
	closed(ok)
	_, ok = <-h.Errors
	closed(ok)
}

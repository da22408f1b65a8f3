package client

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/pintr/p2p-videocall/internal/protocol"
)

// RemoteSDP is a relayed offer or answer together with the sender identity
// the relay tagged it with.
type RemoteSDP struct {
	From string
	SDP  string
}

// Handler routes incoming relay messages onto typed channels. All channels
// close when the underlying message stream ends.
type Handler struct {
	in <-chan *protocol.Message

	Joined    chan *protocol.JoinedPayload
	Ready     chan *protocol.ReadyPayload
	Full      chan struct{}
	Offer     chan *RemoteSDP
	Answer    chan *RemoteSDP
	Candidate chan webrtc.ICECandidateInit
	PeerLeft  chan string
	Errors    chan string

	log zerolog.Logger
}

// NewHandler creates a handler over the given message stream; pass
// Client.Incoming().
func NewHandler(in <-chan *protocol.Message, log zerolog.Logger) *Handler {
	return &Handler{
		in:        in,
		Joined:    make(chan *protocol.JoinedPayload, 1),
		Ready:     make(chan *protocol.ReadyPayload, 1),
		Full:      make(chan struct{}, 1),
		Offer:     make(chan *RemoteSDP, 1),
		Answer:    make(chan *RemoteSDP, 1),
		Candidate: make(chan webrtc.ICECandidateInit, 32),
		PeerLeft:  make(chan string, 1),
		Errors:    make(chan string, 1),
		log:       log,
	}
}

// Run consumes the stream until it closes, then closes every typed channel.
// Run it on its own goroutine.
func (h *Handler) Run() {
	defer h.closeAll()

	for msg := range h.in {
		switch msg.Type {
		case protocol.TypeJoined:
			var p protocol.JoinedPayload
			if err := msg.DecodePayload(&p); err != nil {
				h.log.Warn().Err(err).Msg("bad joined payload")
				continue
			}
			h.Joined <- &p

		case protocol.TypeReady:
			var p protocol.ReadyPayload
			if len(msg.Payload) > 0 {
				if err := msg.DecodePayload(&p); err != nil {
					h.log.Warn().Err(err).Msg("bad ready payload")
					continue
				}
			}
			h.Ready <- &p

		case protocol.TypeFull:
			h.Full <- struct{}{}

		case protocol.TypeOffer, protocol.TypeAnswer:
			var p protocol.SDPPayload
			if err := msg.DecodePayload(&p); err != nil {
				h.log.Warn().Err(err).Msg("bad sdp payload")
				continue
			}
			sdp := &RemoteSDP{From: msg.From, SDP: p.SDP}
			if msg.Type == protocol.TypeOffer {
				h.Offer <- sdp
			} else {
				h.Answer <- sdp
			}

		case protocol.TypeCandidate:
			var p protocol.CandidatePayload
			if err := msg.DecodePayload(&p); err != nil {
				h.log.Warn().Err(err).Msg("bad candidate payload")
				continue
			}
			h.Candidate <- p.Candidate

		case protocol.TypeLeave:
			var p protocol.LeavePayload
			if err := msg.DecodePayload(&p); err != nil {
				h.log.Warn().Err(err).Msg("bad leave payload")
				continue
			}
			h.PeerLeft <- p.UserID

		case protocol.TypeError:
			var p protocol.ErrorPayload
			if err := msg.DecodePayload(&p); err != nil {
				h.Errors <- "unknown error from relay"
				continue
			}
			h.Errors <- p.Error

		case protocol.TypeLog:
			var p protocol.LogPayload
			if err := msg.DecodePayload(&p); err != nil {
				continue
			}
			for _, line := range p.Messages {
				h.log.Info().Str("relay", line).Msg("diagnostic")
			}

		default:
			h.log.Debug().Str("type", msg.Type).Msg("ignoring unknown message type")
		}
	}
}

func (h *Handler) closeAll() {
	close(h.Joined)
	close(h.Ready)
	close(h.Full)
	close(h.Offer)
	close(h.Answer)
	close(h.Candidate)
	close(h.PeerLeft)
	close(h.Errors)
}

// Package call drives the client side of a two-party WebRTC negotiation: it
// owns the local peer connection handle, creates offers and answers in
// response to relay messages and recovers from connectivity loss with ICE
// restarts.
package call

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/pintr/p2p-videocall/internal/protocol"
)

// Signaler sends protocol messages to the relay. client.Client satisfies it.
type Signaler interface {
	SendMessage(msg *protocol.Message)
}

// Config tunes a Coordinator. Callbacks run synchronously from coordinator
// operations and must not call back into the Coordinator.
type Config struct {
	// ICEServers is the local fallback used until the relay provides
	// config in a joined payload.
	ICEServers []protocol.ICEServer

	// Tracks are local media attached to every fresh peer connection.
	// Without tracks the coordinator negotiates recvonly audio and video.
	Tracks []webrtc.TrackLocal

	// OnRemoteTrack surfaces incoming media.
	OnRemoteTrack func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

	// OnStateChange observes negotiation state transitions.
	OnStateChange func(state State)

	// OnCallEnded fires when the call ends other than by Close: the peer
	// hung up or recovery was exhausted.
	OnCallEnded func(reason string)

	// MaxRestartAttempts bounds consecutive recovery rounds before the
	// call surfaces as ended. Defaults to 3.
	MaxRestartAttempts int

	Logger zerolog.Logger
}

// Coordinator is the negotiation state machine. All exported methods are safe
// for concurrent use; pion callbacks re-enter through the same mutex.
type Coordinator struct {
	mu         sync.Mutex
	state      State
	offerer    bool
	restarts   int
	iceServers []protocol.ICEServer

	pc    peerConn
	pcGen int

	// pending buffers remote candidates that arrived before a remote
	// description existed.
	pending []webrtc.ICECandidateInit

	signaler Signaler
	newPeer  peerFactory
	cfg      Config
	log      zerolog.Logger
}

// New creates a coordinator in the Idle state.
func New(signaler Signaler, cfg Config) *Coordinator {
	if cfg.MaxRestartAttempts <= 0 {
		cfg.MaxRestartAttempts = 3
	}
	return &Coordinator{
		state:      StateIdle,
		iceServers: cfg.ICEServers,
		signaler:   signaler,
		newPeer:    newPionPeer,
		cfg:        cfg,
		log:        cfg.Logger,
	}
}

// State returns the current negotiation state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HandleJoined confirms room membership. Config handed out by the relay
// replaces the local fallback. On a rejoin after reconnect the established
// state is kept; a fresh ready or offer drives renegotiation.
func (c *Coordinator) HandleJoined(p *protocol.JoinedPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return NewError("joined", ErrClosed)
	}
	if p.ICEServers != nil {
		c.iceServers = p.ICEServers
	}
	if c.state == StateIdle {
		c.setStateLocked(StateAwaitingReady)
	}
	return nil
}

// HandleReady makes this side the offerer: a fresh peer connection is built
// and an offer goes out. Arriving while a call is established means the
// remote side rejoined and the round starts over.
func (c *Coordinator) HandleReady() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return NewError("ready", ErrClosed)
	case StateIdle:
		return WrapError("ready", ErrUnexpectedSignal, "not joined")
	}

	c.offerer = true
	c.restarts = 0
	if err := c.rebuildPeerLocked(); err != nil {
		return err
	}
	if err := c.sendOfferLocked(false); err != nil {
		return err
	}
	c.setStateLocked(StateOffering)
	return nil
}

// HandleOffer answers a remote offer. In AwaitingReady it builds the first
// peer connection; on an established handle it applies a renegotiation or
// restart offer in place.
func (c *Coordinator) HandleOffer(sdp string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return NewError("offer", ErrClosed)
	case StateIdle:
		return WrapError("offer", ErrUnexpectedSignal, "not joined")
	case StateOffering:
		// The relay's ready-only-to-occupants rule makes simultaneous
		// offers impossible; an offer here is a protocol violation.
		return WrapError("offer", ErrUnexpectedSignal, "both sides offering")
	}

	c.offerer = false
	if c.pc == nil {
		if err := c.rebuildPeerLocked(); err != nil {
			return err
		}
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return NewError("set remote description", err)
	}
	c.flushPendingLocked()

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return NewError("create answer", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return NewError("set local description", err)
	}

	if err := c.sendSDPLocked(protocol.TypeAnswer); err != nil {
		return err
	}
	c.setStateLocked(StateAnswering)
	return nil
}

// HandleAnswer completes the offerer's round.
func (c *Coordinator) HandleAnswer(sdp string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOffering {
		return WrapError("answer", ErrUnexpectedSignal, c.state.String())
	}
	if c.pc == nil {
		return NewError("answer", ErrNoPeerConnection)
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		return NewError("set remote description", err)
	}
	c.flushPendingLocked()
	c.setStateLocked(StateConnected)
	return nil
}

// HandleCandidate applies a remote candidate to the current handle.
// Best-effort: candidates arriving before a handle or remote description
// exist are buffered, failures are logged and never fatal.
func (c *Coordinator) HandleCandidate(candidate webrtc.ICECandidateInit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return
	}
	if c.pc == nil || c.pc.RemoteDescription() == nil {
		c.pending = append(c.pending, candidate)
		return
	}
	if err := c.pc.AddICECandidate(candidate); err != nil {
		c.log.Warn().Err(err).Msg("failed to add remote candidate")
	}
}

// HandlePeerLeft tears the media session down but keeps the coordinator
// joined: the relay will send a fresh ready if the peer comes back.
func (c *Coordinator) HandlePeerLeft() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed || c.state == StateIdle {
		return
	}
	c.closePeerLocked()
	c.offerer = false
	c.restarts = 0
	c.setStateLocked(StateAwaitingReady)
}

// Close hangs up: the handle is torn down and leave is emitted. Idempotent.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return nil
	}
	c.closePeerLocked()
	c.setStateLocked(StateClosed)

	if msg, err := protocol.NewMessage(protocol.TypeLeave, nil); err == nil {
		c.signaler.SendMessage(msg)
	}
	return nil
}

// rebuildPeerLocked replaces the peer connection handle with a fresh one
// built from the current connectivity-server config.
func (c *Coordinator) rebuildPeerLocked() error {
	c.closePeerLocked()

	pc, err := c.newPeer(c.iceServers)
	if err != nil {
		return err
	}
	c.pc = pc
	c.pcGen++
	gen := c.pcGen

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		msg, err := protocol.NewMessage(protocol.TypeCandidate, protocol.CandidatePayload{
			Candidate: candidate.ToJSON(),
		})
		if err != nil {
			return
		}
		c.signaler.SendMessage(msg)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if c.cfg.OnRemoteTrack != nil {
			c.cfg.OnRemoteTrack(track, receiver)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.onConnectionState(gen, state)
	})

	if len(c.cfg.Tracks) == 0 {
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				return NewError("add transceiver", err)
			}
		}
		return nil
	}
	for _, track := range c.cfg.Tracks {
		if _, err := pc.AddTrack(track); err != nil {
			return NewError("add track", err)
		}
	}
	return nil
}

// onConnectionState reacts to connectivity checks. Events from torn-down
// handles are discarded by generation.
func (c *Coordinator) onConnectionState(gen int, state webrtc.PeerConnectionState) {
	c.mu.Lock()
	if gen != c.pcGen || c.state == StateClosed {
		c.mu.Unlock()
		return
	}

	switch state {
	case webrtc.PeerConnectionStateConnected:
		c.restarts = 0
		if c.state == StateAnswering || c.state == StateRecovering {
			// The offerer reaches Connected on the answer; the
			// answerer reaches it here, once checks succeed.
			c.setStateLocked(StateConnected)
		}
		c.mu.Unlock()

	case webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateClosed:
		if c.state != StateConnected && c.state != StateOffering && c.state != StateAnswering {
			c.mu.Unlock()
			return
		}
		c.setStateLocked(StateRecovering)
		offerer := c.offerer
		c.mu.Unlock()
		if offerer {
			// Recover off the callback goroutine; pion may still
			// hold internal locks here.
			go c.recover()
		}
		// The answering side never initiates recovery: it waits for
		// a restart offer.

	default:
		c.mu.Unlock()
	}
}

// recover attempts an ICE restart: in place when the signaling state permits,
// otherwise on a brand-new handle. Bounded by MaxRestartAttempts, after which
// the call surfaces as ended.
func (c *Coordinator) recover() {
	c.mu.Lock()

	if c.state != StateRecovering || !c.offerer {
		c.mu.Unlock()
		return
	}

	c.restarts++
	if c.restarts > c.cfg.MaxRestartAttempts {
		c.mu.Unlock()
		c.end(ErrRecoveryExhausted.Error())
		return
	}
	c.log.Info().Int("attempt", c.restarts).Msg("attempting connectivity recovery")

	// In-place restart only works from a stable signaling state.
	if c.pc != nil && c.pc.SignalingState() == webrtc.SignalingStateStable {
		if err := c.sendOfferLocked(true); err == nil {
			c.setStateLocked(StateOffering)
			c.mu.Unlock()
			return
		}
		c.log.Warn().Msg("in-place restart unavailable, rebuilding peer connection")
	}

	if err := c.rebuildPeerLocked(); err != nil {
		c.mu.Unlock()
		c.end(err.Error())
		return
	}
	if err := c.sendOfferLocked(true); err != nil {
		c.mu.Unlock()
		c.end(err.Error())
		return
	}
	c.setStateLocked(StateOffering)
	c.mu.Unlock()
}

// end closes the call and reports it as ended to the local user.
func (c *Coordinator) end(reason string) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.closePeerLocked()
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	c.log.Warn().Str("reason", reason).Msg("call ended")
	if c.cfg.OnCallEnded != nil {
		c.cfg.OnCallEnded(reason)
	}
}

func (c *Coordinator) sendOfferLocked(restart bool) error {
	if c.pc == nil {
		return NewError("offer", ErrNoPeerConnection)
	}
	var opts *webrtc.OfferOptions
	if restart {
		opts = &webrtc.OfferOptions{ICERestart: true}
	}
	offer, err := c.pc.CreateOffer(opts)
	if err != nil {
		return NewError("create offer", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return NewError("set local description", err)
	}
	return c.sendSDPLocked(protocol.TypeOffer)
}

func (c *Coordinator) sendSDPLocked(msgType string) error {
	desc := c.pc.LocalDescription()
	if desc == nil {
		return NewError(msgType, ErrNoPeerConnection)
	}
	msg, err := protocol.NewMessage(msgType, protocol.SDPPayload{SDP: desc.SDP})
	if err != nil {
		return NewError(msgType, err)
	}
	c.signaler.SendMessage(msg)
	return nil
}

func (c *Coordinator) flushPendingLocked() {
	for _, candidate := range c.pending {
		if err := c.pc.AddICECandidate(candidate); err != nil {
			c.log.Warn().Err(err).Msg("failed to add buffered candidate")
		}
	}
	c.pending = nil
}

func (c *Coordinator) closePeerLocked() {
	if c.pc == nil {
		return
	}
	c.pc.Close()
	c.pc = nil
	c.pcGen++
	c.pending = nil
}

func (c *Coordinator) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.log.Debug().Str("from", c.state.String()).Str("to", state.String()).Msg("negotiation state change")
	c.state = state
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(state)
	}
}

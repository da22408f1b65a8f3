package call

import (
	"github.com/pion/webrtc/v4"

	"github.com/pintr/p2p-videocall/internal/protocol"
)

// peerConn is the slice of *webrtc.PeerConnection the coordinator drives.
// Narrowing it to an interface keeps the state machine testable without
// opening network sockets.
type peerConn interface {
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription
	RemoteDescription() *webrtc.SessionDescription
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	SignalingState() webrtc.SignalingState
	OnICECandidate(f func(*webrtc.ICECandidate))
	OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	AddTransceiverFromKind(kind webrtc.RTPCodecType, init ...webrtc.RTPTransceiverInit) (*webrtc.RTPTransceiver, error)
	Close() error
}

// peerFactory builds a fresh peer connection handle from the current
// connectivity-server config.
type peerFactory func(servers []protocol.ICEServer) (peerConn, error)

// newPionPeer is the production factory.
func newPionPeer(servers []protocol.ICEServer) (peerConn, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: toPionServers(servers),
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	return pc, nil
}

func toPionServers(servers []protocol.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		ice := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			ice.Credential = s.Credential
		}
		out = append(out, ice)
	}
	return out
}

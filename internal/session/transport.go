package session

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

// ICE servers for NAT traversal.
var defaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:global.stun.twilio.com:3478"}},
}

// PeerTransport is the slice of *webrtc.PeerConnection the negotiation
// driver touches. *webrtc.PeerConnection satisfies it directly; tests
// substitute a scripted fake.
type PeerTransport interface {
	AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	OnICECandidate(f func(*webrtc.ICECandidate))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	Close() error
}

// TransportFactory creates a fresh transport per peer connection entry.
type TransportFactory func() (PeerTransport, error)

// NewPeerTransport is the default factory, backed by pion with the
// default STUN servers.
func NewPeerTransport() (PeerTransport, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: defaultICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	return pc, nil
}

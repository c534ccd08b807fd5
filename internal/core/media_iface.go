package core

import (
	"context"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
)

// LinkState is the negotiation state of one peer link.
type LinkState int

const (
	LinkNegotiating LinkState = iota
	LinkConnected
	LinkFailed
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkNegotiating:
		return "negotiating"
	case LinkConnected:
		return "connected"
	case LinkFailed:
		return "failed"
	case LinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MediaConnection is one peer-to-peer media connection.
// Callbacks may fire on any goroutine.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool
	// AddLocalStream attaches every local track; disabled tracks are attached too.
	AddLocalStream(LocalStream) error
	CreateOffer() (webrtc.SessionDescription, error)
	ApplyOffer(webrtc.SessionDescription) (webrtc.SessionDescription, error)
	ApplyAnswer(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate, queueing it until the
	// remote description is known.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(domain.Track))
	OnStateChange(func(LinkState))
}

// MediaConnectionFactory opens a connection towards one remote participant.
type MediaConnectionFactory interface {
	NewMediaConnection(peer domain.UserID) (MediaConnection, error)
}

package peers

import (
	"context"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// Link is one peer-to-peer media connection plus its negotiation state.
type Link struct {
	peer    domain.UserID
	conn    core.MediaConnection
	state   core.LinkState
	offerer bool
	// remoteSet is true once an offer or answer from the peer was applied.
	remoteSet bool
	stream    *domain.MediaStream
	cancel    context.CancelFunc
	// stopDeadline cancels the negotiation timeout.
	stopDeadline func() bool
}

func (l *Link) Peer() domain.UserID         { return l.peer }
func (l *Link) State() core.LinkState       { return l.state }
func (l *Link) Offerer() bool               { return l.offerer }
func (l *Link) Stream() *domain.MediaStream { return l.stream }

func (l *Link) clearDeadline() {
	if l.stopDeadline != nil {
		l.stopDeadline()
		l.stopDeadline = nil
	}
}

func (l *Link) close() {
	l.clearDeadline()
	if l.cancel != nil {
		l.cancel()
	}
	l.conn.Close()
	l.state = core.LinkClosed
}

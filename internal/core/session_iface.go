package core

import "github.com/dkeye/Huddle/internal/domain"

// SessionID identifies one signaling connection on the server.
type SessionID string

// Frame is one encoded protocol envelope.
type Frame []byte

// SignalConnection is the server end of one participant's signaling socket.
// TrySend never blocks; a full queue is reported as an error and left to the
// backpressure policy. The adapter that created it closes it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession pairs a room member with its current signaling connection.
// The connection is nil while the member sits in its disconnect grace.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
	UpdateSignal(SignalConnection) MemberSession
}

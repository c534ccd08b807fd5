package rtc

import (
	"fmt"

	"github.com/dkeye/Huddle/internal/domain"
)

// Error records the negotiation step that failed and for which peer.
type Error struct {
	Op   string
	Peer domain.UserID
	Err  error
}

func (e *Error) Error() string {
	if e.Peer == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (peer %s): %v", e.Op, e.Peer, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(op string, peer domain.UserID, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}

package session

import "github.com/dkeye/Huddle/internal/domain"

type ChangeKind int

const (
	ChangeRoster ChangeKind = iota
	ChangeMessage
	ChangeConnectivity
	ChangeMedia
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeRoster:
		return "roster"
	case ChangeMessage:
		return "message"
	case ChangeConnectivity:
		return "connectivity"
	case ChangeMedia:
		return "media"
	default:
		return "unknown"
	}
}

// Change tells an observer what part of the session moved. Message is set
// for ChangeMessage only.
type Change struct {
	Kind    ChangeKind
	Message domain.ChatMessage
}

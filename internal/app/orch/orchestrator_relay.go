package orch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RelayDescription forwards an offer or answer to its target. The relayed
// peerId names the sender so the target knows whom to answer.
func (o *Orchestrator) RelayDescription(sid core.SessionID, event string, sd protocol.SessionDescription) error {
	b, room, err := o.joined(sid)
	if err != nil {
		return err
	}
	target := sd.PeerID
	sd.PeerID = b.UserID
	return o.relay(room, b.UserID, target, event, sd)
}

func (o *Orchestrator) RelayCandidate(sid core.SessionID, c protocol.ICECandidate) error {
	b, room, err := o.joined(sid)
	if err != nil {
		return err
	}
	target := c.PeerID
	c.PeerID = b.UserID
	return o.relay(room, b.UserID, target, protocol.EventICECandidate, c)
}

func (o *Orchestrator) relay(room core.RoomService, from, to domain.UserID, event string, payload any) error {
	if to == "" || to == from {
		return ErrUnknownPeer
	}
	frame, err := protocol.Encode(event, 0, payload)
	if err != nil {
		return err
	}
	if err := room.SendTo(to, frame); err != nil {
		if errors.Is(err, core.ErrNotMember) {
			return ErrUnknownPeer
		}
		return fmt.Errorf("relay %s to %s: %w", event, to, err)
	}
	log.Debug().Str("module", "app.orch").Str("event", event).Str("from", string(from)).Str("to", string(to)).Msg("relayed")
	return nil
}

// UpdateParticipant applies a participant's own media flags and display
// name, then tells the rest of the room.
func (o *Orchestrator) UpdateParticipant(sid core.SessionID, upd protocol.ParticipantUpdate) error {
	b, room, err := o.joined(sid)
	if err != nil {
		return err
	}
	if upd.RoomID != "" && upd.RoomID != b.RoomID {
		return ErrRoomMismatch
	}
	if upd.UserID != "" && upd.UserID != b.UserID {
		return ErrUpdateForbidden
	}
	if upd.DisplayName != "" {
		name, err := domain.ValidateDisplayName(upd.DisplayName)
		if err != nil {
			return err
		}
		upd.DisplayName = name
	}
	if upd.DisplayName == "" && upd.Updates.Empty() {
		return nil
	}

	if _, ok := room.UpdateMember(b.UserID, func(m *domain.Member) {
		m.Apply(upd.Updates)
		if upd.DisplayName != "" {
			m.User.DisplayName = upd.DisplayName
		}
	}); !ok {
		return ErrNotJoined
	}
	upd.RoomID = b.RoomID
	upd.UserID = b.UserID
	o.broadcast(room, b.UserID, protocol.EventParticipantUpdate, upd)
	return nil
}

// Message validates a chat message and fans it out to everyone but its
// sender. Sender identity is taken from the connection.
func (o *Orchestrator) Message(sid core.SessionID, msg protocol.Message) error {
	b, room, err := o.joined(sid)
	if err != nil {
		return err
	}
	if msg.SenderID != "" && msg.SenderID != b.UserID {
		return ErrSenderMismatch
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return ErrEmptyMessage
	}
	if len([]rune(content)) > MaxMessageLen {
		return ErrMessageTooLong
	}
	msg.Content = content
	msg.RoomID = b.RoomID
	msg.SenderID = b.UserID
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = o.now()
	}
	if msg.SenderName == "" {
		for _, p := range room.MembersSnapshot() {
			if p.ID == b.UserID {
				msg.SenderName = p.DisplayName
				break
			}
		}
	}
	o.broadcast(room, b.UserID, protocol.EventMessage, msg)
	return nil
}

// RoomState returns the server's participant list for the caller's room.
func (o *Orchestrator) RoomState(sid core.SessionID, req protocol.GetRoomStateRequest) (protocol.RoomState, error) {
	b, room, err := o.joined(sid)
	if err != nil {
		return protocol.RoomState{}, err
	}
	if req.RoomID != "" && req.RoomID != b.RoomID {
		return protocol.RoomState{}, ErrRoomMismatch
	}
	return protocol.RoomState{Participants: room.MembersSnapshot()}, nil
}

package session

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
)

func (s *Session) subscribe() {
	routes := map[string]func(json.RawMessage){
		protocol.EventParticipantJoined: s.onParticipantJoined,
		protocol.EventParticipantLeft:   s.onParticipantLeft,
		protocol.EventParticipantUpdate: s.onParticipantUpdate,
		protocol.EventMessage:           s.onMessage,
		protocol.EventICECandidate:      s.onICECandidate,
		protocol.EventOffer:             s.onOffer,
		protocol.EventAnswer:            s.onAnswer,
		protocol.EventError:             s.onServerError,
		protocol.EventConnect:           s.onConnect,
		protocol.EventDisconnect:        s.onDisconnect,
		protocol.EventConnectError:      s.onConnectError,
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for event, fn := range routes {
		handle := fn
		s.subs = append(s.subs, s.channel.Subscribe(event, func(payload json.RawMessage) {
			s.loop.post(func() {
				if s.left {
					return
				}
				handle(payload)
			})
		}))
	}
}

// decode logs and reports false on a malformed payload; protocol errors are
// never surfaced to the user.
func (s *Session) decode(event string, payload json.RawMessage, v any) bool {
	if err := json.Unmarshal(payload, v); err != nil {
		s.logger.Debug().Err(err).Str("event", event).Msg("malformed payload dropped")
		return false
	}
	return true
}

func (s *Session) onParticipantJoined(payload json.RawMessage) {
	var ev protocol.ParticipantJoined
	if !s.decode(protocol.EventParticipantJoined, payload, &ev) {
		return
	}
	added := s.roster.Join(ev)
	if len(added) == 0 {
		s.observer(Change{Kind: ChangeRoster})
		return
	}
	s.logger.Info().Int("added", len(added)).Str("participant", string(ev.Participant.ID)).Msg("participant joined")
	s.peers.Sync(s.roster.RemoteIDs())
	s.observer(Change{Kind: ChangeRoster})
}

func (s *Session) onParticipantLeft(payload json.RawMessage) {
	var id domain.UserID
	if !s.decode(protocol.EventParticipantLeft, payload, &id) {
		return
	}
	if !s.roster.Leave(id) {
		return
	}
	s.peers.Close(id)
	s.logger.Info().Str("participant", string(id)).Msg("participant left")
	s.observer(Change{Kind: ChangeRoster})
}

func (s *Session) onParticipantUpdate(payload json.RawMessage) {
	var ev protocol.ParticipantUpdate
	if !s.decode(protocol.EventParticipantUpdate, payload, &ev) {
		return
	}
	if ev.UserID == s.cfg.UserID {
		// Local toggles are authoritative until published.
		return
	}
	if s.roster.Update(ev) {
		s.observer(Change{Kind: ChangeRoster})
	}
}

func (s *Session) onMessage(payload json.RawMessage) {
	var m protocol.Message
	if !s.decode(protocol.EventMessage, payload, &m) {
		return
	}
	msg := m.ChatMessage()
	s.feed.Append(msg)
	s.observer(Change{Kind: ChangeMessage, Message: msg})
}

func (s *Session) onICECandidate(payload json.RawMessage) {
	var ev protocol.ICECandidate
	if !s.decode(protocol.EventICECandidate, payload, &ev) {
		return
	}
	s.peers.HandleCandidate(ev.PeerID, ev.Candidate)
}

func (s *Session) onOffer(payload json.RawMessage) {
	var ev protocol.SessionDescription
	if !s.decode(protocol.EventOffer, payload, &ev) {
		return
	}
	s.peers.HandleOffer(ev.PeerID, ev.SDP)
}

func (s *Session) onAnswer(payload json.RawMessage) {
	var ev protocol.SessionDescription
	if !s.decode(protocol.EventAnswer, payload, &ev) {
		return
	}
	s.peers.HandleAnswer(ev.PeerID, ev.SDP)
}

func (s *Session) onServerError(payload json.RawMessage) {
	var ev protocol.ErrorPayload
	if !s.decode(protocol.EventError, payload, &ev) {
		return
	}
	s.logger.Warn().Str("error", ev.Error).Msg("server reported an error")
}

// onConnect handles transport (re)connects. The first connection is covered
// by the join handshake; later ones rejoin and resync.
func (s *Session) onConnect(json.RawMessage) {
	if !s.joined {
		return
	}
	s.connected = true
	s.observer(Change{Kind: ChangeConnectivity})
	name := s.roster.Self().DisplayName
	s.logger.Info().Msg("channel reconnected, rejoining")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
		defer cancel()
		if _, err := s.requestJoin(ctx, name); err != nil {
			s.logger.Warn().Err(err).Msg("rejoin")
			s.notify(core.Notice{
				Kind:        core.NoticeConnection,
				Severity:    core.SeverityWarning,
				Title:       "Connection Issue",
				Description: "Could not rejoin the room after reconnecting.",
			})
			return
		}
		if err := s.Resync(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("resync after rejoin")
		}
	}()
}

func (s *Session) onDisconnect(json.RawMessage) {
	if !s.connected {
		return
	}
	s.connected = false
	s.logger.Warn().Msg("channel disconnected")
	s.observer(Change{Kind: ChangeConnectivity})
}

func (s *Session) onConnectError(payload json.RawMessage) {
	var reason string
	if err := json.Unmarshal(payload, &reason); err != nil || reason == "" {
		reason = "connection error"
	}
	s.logger.Warn().Str("reason", reason).Msg("channel connect error")
	s.connected = false
	s.notify(core.Notice{
		Kind:        core.NoticeConnection,
		Severity:    core.SeverityWarning,
		Title:       "Connection Error",
		Description: reason,
	})
	s.observer(Change{Kind: ChangeConnectivity})
}

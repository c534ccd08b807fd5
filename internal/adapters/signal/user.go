package signal

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleParticipantUpdate(
	sid core.SessionID,
	conn *WsSignalConn,
	env protocol.Envelope,
) {
	var p protocol.ParticipantUpdate
	if !ctl.decodePayload(conn, env, &p) {
		return
	}
	if err := ctl.Orch.UpdateParticipant(sid, p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("participant update rejected")
		ctl.sendError(conn, env.Ack, err.Error())
		return
	}
	ctl.reply(conn, env.Ack, nil)
}

// handleMessage acks null on delivery and a reason string otherwise, so the
// sender keeps its input when the message was not relayed.
func (ctl *SignalWSController) handleMessage(
	sid core.SessionID,
	conn *WsSignalConn,
	env protocol.Envelope,
) {
	var p protocol.Message
	if !ctl.decodePayload(conn, env, &p) {
		return
	}
	b, ok := ctl.Orch.Registry.Lookup(sid)
	if !ok || b.UserID == "" {
		ctl.reply(conn, env.Ack, "not in a room")
		return
	}
	if !ctl.Limiter.Allow(b.UserID) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("user", string(b.UserID)).Msg("message rate limited")
		ctl.reply(conn, env.Ack, "rate limited")
		return
	}
	if err := ctl.Orch.Message(sid, p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("message rejected")
		ctl.reply(conn, env.Ack, err.Error())
		return
	}
	ctl.reply(conn, env.Ack, nil)
}

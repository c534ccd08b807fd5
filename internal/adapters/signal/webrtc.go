package signal

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// handleDescription relays an offer or answer; the server never looks
// inside the SDP.
func (ctl *SignalWSController) handleDescription(
	sid core.SessionID,
	conn *WsSignalConn,
	env protocol.Envelope,
) {
	var p protocol.SessionDescription
	if !ctl.decodePayload(conn, env, &p) {
		return
	}
	if err := ctl.Orch.RelayDescription(sid, env.Type, p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Str("peer", string(p.PeerID)).Msg("relay failed")
		ctl.sendError(conn, env.Ack, err.Error())
		return
	}
	ctl.reply(conn, env.Ack, nil)
}

func (ctl *SignalWSController) handleCandidate(
	sid core.SessionID,
	conn *WsSignalConn,
	env protocol.Envelope,
) {
	var p protocol.ICECandidate
	if !ctl.decodePayload(conn, env, &p) {
		return
	}
	if err := ctl.Orch.RelayCandidate(sid, p); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("peer", string(p.PeerID)).Msg("candidate relay failed")
		ctl.sendError(conn, env.Ack, err.Error())
		return
	}
	ctl.reply(conn, env.Ack, nil)
}

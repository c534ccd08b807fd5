package signal

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	env protocol.Envelope,
) {
	var p protocol.JoinRoomRequest
	if !ctl.decodePayload(conn, env, &p) {
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", string(p.RoomID)).Str("user", string(p.UserID)).Msg("join")
	resp, err := ctl.Orch.Join(sid, p)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join rejected")
		ctl.reply(conn, env.Ack, protocol.JoinRoomResponse{Success: false, Error: err.Error()})
		return
	}
	ctl.reply(conn, env.Ack, resp)
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(
	sid core.SessionID,
	conn *WsSignalConn,
	env protocol.Envelope,
) {
	var p protocol.LeaveRoomRequest
	if len(env.Payload) > 0 && !ctl.decodePayload(conn, env, &p) {
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	b, _ := ctl.Orch.Registry.Lookup(sid)
	if err := ctl.Orch.Leave(sid, p); err != nil {
		ctl.sendError(conn, env.Ack, err.Error())
		return
	}
	ctl.Limiter.Forget(b.UserID)
	ctl.reply(conn, env.Ack, nil)
}

func (ctl *SignalWSController) handleGetRoomState(
	sid core.SessionID,
	conn *WsSignalConn,
	env protocol.Envelope,
) {
	var p protocol.GetRoomStateRequest
	if len(env.Payload) > 0 && !ctl.decodePayload(conn, env, &p) {
		return
	}
	state, err := ctl.Orch.RoomState(sid, p)
	if err != nil {
		ctl.sendError(conn, env.Ack, err.Error())
		return
	}
	ctl.reply(conn, env.Ack, state)
}

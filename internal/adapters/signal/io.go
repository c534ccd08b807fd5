package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Orch.Disconnect(sid)
	}()

	pongWait := ctl.cfg.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleSignal(sid, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *WsSignalConn, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, 0, "bad_json")
		return
	}

	switch env.Type {
	case protocol.EventJoinRoom:
		ctl.handleJoin(sid, c, env)
	case protocol.EventLeaveRoom:
		ctl.handleLeave(sid, c, env)
	case protocol.EventGetRoomState:
		ctl.handleGetRoomState(sid, c, env)
	case protocol.EventParticipantUpdate:
		ctl.handleParticipantUpdate(sid, c, env)
	case protocol.EventMessage:
		ctl.handleMessage(sid, c, env)
	case protocol.EventOffer, protocol.EventAnswer:
		ctl.handleDescription(sid, c, env)
	case protocol.EventICECandidate:
		ctl.handleCandidate(sid, c, env)
	case protocol.EventPing:
		ctl.handlePing(c, env)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, env.Ack, "unknown_event")
	}
}

// decodePayload answers bad_payload itself when the payload does not parse.
func (ctl *SignalWSController) decodePayload(c *WsSignalConn, env protocol.Envelope, v any) bool {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", env.Type).Msg("bad payload")
		ctl.sendError(c, env.Ack, "bad_payload")
		return false
	}
	return true
}

func (ctl *SignalWSController) sendFrame(c *WsSignalConn, event string, ack uint64, payload any) {
	b, err := protocol.Encode(event, ack, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendFrame marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", event).Msg("sendFrame")
	}
}

// reply acknowledges a request; fire-and-forget frames carry no ack.
func (ctl *SignalWSController) reply(c *WsSignalConn, ack uint64, payload any) {
	if ack == 0 {
		return
	}
	ctl.sendFrame(c, protocol.EventAck, ack, payload)
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, ack uint64, msg string) {
	ctl.sendFrame(c, protocol.EventError, ack, protocol.ErrorPayload{Error: msg})
}

package signal

import "github.com/dkeye/Huddle/internal/protocol"

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
	env protocol.Envelope,
) {
	ctl.sendFrame(conn, protocol.EventPong, env.Ack, nil)
}

package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is one JSON text frame on the signaling socket.
// A non-zero Ack on a client frame asks for an acknowledgment; the server
// answers with Type "ack" and the same Ack.
type Envelope struct {
	Type    string          `json:"type"`
	Ack     uint64          `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals payload into an envelope frame.
func Encode(event string, ack uint64, payload any) ([]byte, error) {
	env := Envelope{Type: event, Ack: ack}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

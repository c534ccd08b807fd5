package core

import (
	"context"
	"encoding/json"
)

// Handler receives the raw payload of one inbound event.
type Handler func(payload json.RawMessage)

// Subscription is released exactly once by its owner.
type Subscription interface {
	Unsubscribe()
}

// Channel is the client's view of the signaling transport.
// Transport, reconnect and keep-alive are the implementation's business.
type Channel interface {
	// Emit sends a fire-and-forget event.
	Emit(event string, payload any) error
	// Request sends an event and waits for its acknowledgment.
	// reply may be nil when the ack payload is not needed.
	Request(ctx context.Context, event string, payload any, reply any) error
	// Subscribe registers h for event until the returned handle is released.
	Subscribe(event string, h Handler) Subscription
}

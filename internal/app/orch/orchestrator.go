package orch

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

const MaxMessageLen = 2000

var (
	ErrUnknownSession  = errors.New("unknown connection")
	ErrNotJoined       = errors.New("not in a room")
	ErrRoomIDEmpty     = errors.New("room id empty")
	ErrRoomMismatch    = errors.New("room mismatch")
	ErrEmptyMessage    = errors.New("message empty")
	ErrMessageTooLong  = errors.New("message too long")
	ErrUnknownPeer     = errors.New("peer not in room")
	ErrRoomNotFound    = errors.New("room not found")
	ErrSenderMismatch  = errors.New("sender mismatch")
	ErrUpdateForbidden = errors.New("cannot update another participant")
)

type graceKey struct {
	room domain.RoomID
	user domain.UserID
}

type grace struct {
	timer *time.Timer
}

// Orchestrator applies room protocol events to rooms and the registry.
// Membership changes are serialized by mu; relays only read.
type Orchestrator struct {
	Registry   *app.Registry
	Rooms      core.RoomManager
	Policy     app.Policy
	LeaveGrace time.Duration
	Now        func() time.Time

	mu     sync.Mutex
	graces map[graceKey]*grace
}

func New(reg *app.Registry, rooms core.RoomManager, policy app.Policy, leaveGrace time.Duration) *Orchestrator {
	return &Orchestrator{
		Registry:   reg,
		Rooms:      rooms,
		Policy:     policy,
		LeaveGrace: leaveGrace,
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// joined resolves a connection to the room it has joined.
func (o *Orchestrator) joined(sid core.SessionID) (app.Binding, core.RoomService, error) {
	b, ok := o.Registry.Lookup(sid)
	if !ok {
		return app.Binding{}, nil, ErrUnknownSession
	}
	if b.RoomID == "" {
		return b, nil, ErrNotJoined
	}
	room, ok := o.Rooms.GetRoom(b.RoomID)
	if !ok {
		return b, nil, ErrNotJoined
	}
	return b, room, nil
}

// broadcast fans an event out to everyone in the room except from and
// applies the backpressure policy to members that could not keep up.
func (o *Orchestrator) broadcast(room core.RoomService, from domain.UserID, event string, payload any) {
	frame, err := protocol.Encode(event, 0, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("event", event).Msg("encode broadcast")
		return
	}
	res := room.Broadcast(from, frame)
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			sc := slow.Signal()
			if sc == nil {
				continue
			}
			if sid, ok := o.Registry.BySignal(sc); ok {
				log.Warn().Str("module", "app.orch").Str("sid", string(sid)).Str("user", string(slow.Meta().User.ID)).Msg("kick slow member")
				o.Registry.Cancel(sid)
			}
		case app.DropFrame:
			log.Debug().Str("module", "app.orch").Str("user", string(slow.Meta().User.ID)).Str("event", event).Msg("frame dropped for slow member")
		case app.MarkSlow, app.NoAction:
		}
	}
}

func snapshot(room core.RoomService) protocol.RoomSnapshot {
	meta := room.Room()
	participants := room.MembersSnapshot()
	snap := protocol.RoomSnapshot{
		ID:           meta.ID,
		Name:         meta.Name,
		Description:  meta.Description,
		Participants: participants,
	}
	for _, p := range participants {
		if p.IsHost {
			snap.Host = p.ID
			break
		}
	}
	return snap
}

// Snapshot describes a room for the HTTP surface.
func (o *Orchestrator) Snapshot(id domain.RoomID) (protocol.RoomSnapshot, error) {
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return protocol.RoomSnapshot{}, ErrRoomNotFound
	}
	return snapshot(room), nil
}

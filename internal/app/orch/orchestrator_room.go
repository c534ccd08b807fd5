package orch

import (
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Join seats the connection in a room. Joining again with the same user id
// is idempotent: the member keeps its seat and only its signal is rebound,
// so room mates see no second participantJoined.
func (o *Orchestrator) Join(sid core.SessionID, req protocol.JoinRoomRequest) (protocol.JoinRoomResponse, error) {
	if req.RoomID == "" {
		return protocol.JoinRoomResponse{}, ErrRoomIDEmpty
	}
	user, err := domain.NewUser(req.UserID, req.DisplayName)
	if err != nil {
		return protocol.JoinRoomResponse{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.Registry.Lookup(sid)
	if !ok {
		return protocol.JoinRoomResponse{}, ErrUnknownSession
	}
	if b.RoomID != "" && (b.RoomID != req.RoomID || b.UserID != user.ID) {
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(b.RoomID)).Msg("switching rooms")
		o.removeMember(b.RoomID, b.UserID)
		o.Registry.ClearMember(sid)
	}

	room := o.Rooms.GetOrCreate(req.RoomID)
	o.cancelGrace(req.RoomID, user.ID)

	meta := domain.NewMember(user)
	ms := core.NewMemberSession(meta).UpdateSignal(b.Signal)
	if room.AddMember(ms) {
		o.Registry.BindMember(sid, req.RoomID, user.ID)
		participants := room.MembersSnapshot()
		var info protocol.ParticipantInfo
		for _, p := range participants {
			if p.ID == user.ID {
				info = p
				break
			}
		}
		o.broadcast(room, user.ID, protocol.EventParticipantJoined, protocol.ParticipantJoined{
			Participant:  info,
			Participants: participants,
		})
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(req.RoomID)).Str("user", string(user.ID)).Msg("joined")
	} else {
		o.rebind(sid, room, user)
	}

	return protocol.JoinRoomResponse{Success: true, Room: snapshot(room)}, nil
}

// rebind moves an existing member onto this connection. A previous
// connection still carrying the member is detached and closed.
func (o *Orchestrator) rebind(sid core.SessionID, room core.RoomService, user *domain.User) {
	b, _ := o.Registry.Lookup(sid)
	ms, ok := room.Member(user.ID)
	if !ok {
		return
	}
	prev := ms.Signal()
	ms.UpdateSignal(b.Signal)
	o.Registry.BindMember(sid, room.Room().ID, user.ID)
	if prev != nil && prev != b.Signal {
		if old, ok := o.Registry.BySignal(prev); ok {
			o.Registry.ClearMember(old)
			o.Registry.Cancel(old)
		}
	}

	var renamed bool
	room.UpdateMember(user.ID, func(m *domain.Member) {
		if m.User.DisplayName != user.DisplayName {
			m.User.DisplayName = user.DisplayName
			renamed = true
		}
	})
	if renamed {
		o.broadcast(room, user.ID, protocol.EventParticipantUpdate, protocol.ParticipantUpdate{
			RoomID:      room.Room().ID,
			UserID:      user.ID,
			DisplayName: user.DisplayName,
		})
	}
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(room.Room().ID)).Str("user", string(user.ID)).Bool("renamed", renamed).Msg("rejoined")
}

// Leave removes the connection's member right away. Leaving twice, or
// without having joined, is a no-op.
func (o *Orchestrator) Leave(sid core.SessionID, req protocol.LeaveRoomRequest) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.Registry.Lookup(sid)
	if !ok {
		return ErrUnknownSession
	}
	if b.RoomID == "" {
		return nil
	}
	if req.RoomID != "" && req.RoomID != b.RoomID {
		return ErrRoomMismatch
	}
	o.cancelGrace(b.RoomID, b.UserID)
	o.removeMember(b.RoomID, b.UserID)
	o.Registry.ClearMember(sid)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(b.RoomID)).Msg("left")
	return nil
}

// Disconnect handles a dropped connection. Its member keeps the seat for
// LeaveGrace so a reloading client can rejoin without the room noticing.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.Registry.Unbind(sid)
	if !ok || b.RoomID == "" {
		return
	}
	room, ok := o.Rooms.GetRoom(b.RoomID)
	if !ok {
		return
	}
	ms, ok := room.Member(b.UserID)
	if !ok || ms.Signal() != b.Signal {
		// Superseded by a newer connection for the same user.
		return
	}
	ms.UpdateSignal(nil)
	if o.LeaveGrace <= 0 {
		o.removeMember(b.RoomID, b.UserID)
		return
	}

	key := graceKey{room: b.RoomID, user: b.UserID}
	if o.graces == nil {
		o.graces = make(map[graceKey]*grace)
	}
	g := &grace{}
	g.timer = time.AfterFunc(o.LeaveGrace, func() { o.expire(key, g) })
	o.graces[key] = g
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("user", string(b.UserID)).Dur("grace", o.LeaveGrace).Msg("disconnected, holding seat")
}

func (o *Orchestrator) expire(key graceKey, g *grace) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.graces[key] != g {
		return
	}
	delete(o.graces, key)
	room, ok := o.Rooms.GetRoom(key.room)
	if !ok {
		return
	}
	if ms, ok := room.Member(key.user); !ok || ms.Signal() != nil {
		return
	}
	log.Info().Str("module", "app.orch").Str("room", string(key.room)).Str("user", string(key.user)).Msg("grace expired")
	o.removeMember(key.room, key.user)
}

func (o *Orchestrator) cancelGrace(room domain.RoomID, user domain.UserID) {
	key := graceKey{room: room, user: user}
	if g, ok := o.graces[key]; ok {
		g.timer.Stop()
		delete(o.graces, key)
	}
}

// removeMember drops the member and tells the room. Caller holds mu.
func (o *Orchestrator) removeMember(id domain.RoomID, user domain.UserID) {
	room, ok := o.Rooms.GetRoom(id)
	if !ok || !room.RemoveMember(user) {
		return
	}
	o.broadcast(room, user, protocol.EventParticipantLeft, user)
}

// EvictRoom closes every connection seated in the room and forgets it.
func (o *Orchestrator) EvictRoom(id domain.RoomID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.Rooms.GetRoom(id); !ok {
		return ErrRoomNotFound
	}
	for _, b := range o.Registry.MembersOfRoom(id) {
		o.Registry.ClearMember(b.SID)
		o.Registry.Cancel(b.SID)
	}
	for key, g := range o.graces {
		if key.room == id {
			g.timer.Stop()
			delete(o.graces, key)
		}
	}
	o.Rooms.StopRoom(id)
	return nil
}

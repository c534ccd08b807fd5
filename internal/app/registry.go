package app

import (
	"context"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Signal core.SignalConnection
	Cancel context.CancelFunc
	RoomID domain.RoomID
	UserID domain.UserID
}

// Binding is a copy of what the registry knows about one connection.
type Binding struct {
	SID    core.SessionID
	Signal core.SignalConnection
	RoomID domain.RoomID
	UserID domain.UserID
}

// Registry maps live signaling connections to the room member they speak for.
// A connection is bound at upgrade and gains a member once it joins.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (r *Registry) BindSignal(sid core.SessionID, sc core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Signal: sc, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *Registry) BindMember(sid core.SessionID, room domain.RoomID, user domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.RoomID = room
	e.UserID = user
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Str("user", string(user)).Msg("bound member")
	return true
}

// ClearMember keeps the connection but forgets its room.
func (r *Registry) ClearMember(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.RoomID = ""
		e.UserID = ""
	}
}

func (r *Registry) Lookup(sid core.SessionID) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return Binding{}, false
	}
	return Binding{SID: sid, Signal: e.Signal, RoomID: e.RoomID, UserID: e.UserID}, true
}

// Unbind forgets the connection and returns what it was bound to.
func (r *Registry) Unbind(sid core.SessionID) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return Binding{}, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return Binding{SID: sid, Signal: e.Signal, RoomID: e.RoomID, UserID: e.UserID}, true
}

// BySignal finds the connection currently carrying sc.
func (r *Registry) BySignal(sc core.SignalConnection) (core.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for sid, e := range r.sessions {
		if e.Signal == sc {
			return sid, true
		}
	}
	return "", false
}

func (r *Registry) MembersOfRoom(room domain.RoomID) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Binding, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.RoomID == room {
			out = append(out, Binding{SID: sid, Signal: e.Signal, RoomID: e.RoomID, UserID: e.UserID})
		}
	}
	return out
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

package core

import (
	"errors"
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotMember = errors.New("not a member")
	ErrNoSignal  = errors.New("no signal connection")
)

// roomImpl is a threadsafe in-memory room.
// Members are kept in join order; the first member of a hostless room hosts it.
// It never closes adapter-owned resources.
type roomImpl struct {
	room   *domain.Room
	mu     sync.RWMutex
	byUser map[domain.UserID]MemberSession
	order  []domain.UserID
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:   room,
		byUser: make(map[domain.UserID]MemberSession),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

func (r *roomImpl) Member(uid domain.UserID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.byUser[uid]
	return ms, ok
}

func (r *roomImpl) AddMember(ms MemberSession) bool {
	meta := ms.Meta()
	u := meta.User.ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[u]; ok {
		return false
	}
	if r.room.Host == "" {
		r.room.Host = u
	}
	meta.IsHost = r.room.Host == u
	r.byUser[u] = ms
	r.order = append(r.order, u)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("user", string(u)).Msg("member added")
	return true
}

func (r *roomImpl) RemoveMember(uid domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[uid]; !ok {
		return false
	}
	delete(r.byUser, uid)
	for i, id := range r.order {
		if id == uid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("user", string(uid)).Msg("member removed")
	return true
}

func (r *roomImpl) UpdateMember(uid domain.UserID, fn func(*domain.Member)) (protocol.ParticipantInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.byUser[uid]
	if !ok {
		return protocol.ParticipantInfo{}, false
	}
	fn(ms.Meta())
	return protocol.FromMember(ms.Meta()), true
}

func (r *roomImpl) Broadcast(from domain.UserID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for _, uid := range r.order {
		if uid == from {
			continue
		}
		m := r.byUser[uid]
		sc := m.Signal()
		if sc == nil {
			// Disconnected members in their grace window miss live events;
			// they resync with getRoomState after rejoining.
			continue
		}
		if err := sc.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) SendTo(uid domain.UserID, data Frame) error {
	r.mu.RLock()
	ms, ok := r.byUser[uid]
	r.mu.RUnlock()
	if !ok {
		return ErrNotMember
	}
	sc := ms.Signal()
	if sc == nil {
		return ErrNoSignal
	}
	return sc.TrySend(data)
}

func (r *roomImpl) MembersSnapshot() []protocol.ParticipantInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.ParticipantInfo, 0, len(r.order))
	for _, uid := range r.order {
		out = append(out, protocol.FromMember(r.byUser[uid].Meta()))
	}
	return out
}

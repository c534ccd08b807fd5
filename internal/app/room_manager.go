package app

import (
	"sort"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
	newID func() domain.RoomID
}

func NewRoomManager() core.RoomManager {
	return &RoomManagerImpl{
		rooms: make(map[domain.RoomID]core.RoomService),
		newID: func() domain.RoomID { return domain.RoomID(uuid.NewString()[:8]) },
	}
}

func (f *RoomManagerImpl) CreateRoom(name domain.RoomName, description string) core.RoomService {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	for _, taken := f.rooms[id]; taken; _, taken = f.rooms[id] {
		id = f.newID()
	}
	if name == "" {
		name = domain.RoomName(id)
	}
	room := core.NewRoomService(&domain.Room{ID: id, Name: name, Description: description})
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("name", string(name)).Msg("room created")
	return room
}

// GetOrCreate opens a room on first join; the id doubles as its name.
func (f *RoomManagerImpl) GetOrCreate(id domain.RoomID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(&domain.Room{ID: id, Name: domain.RoomName(id)})
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room opened on join")
	return room
}

func (f *RoomManagerImpl) GetRoom(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for _, r := range f.rooms {
		meta := r.Room()
		out = append(out, core.RoomInfo{
			ID:          meta.ID,
			Name:        meta.Name,
			Description: meta.Description,
			MemberCount: r.MemberCount(),
		})
	}
	f.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (f *RoomManagerImpl) StopRoom(id domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room stopped")
}

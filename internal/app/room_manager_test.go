package app

import (
	"testing"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomManager_CreateAndList(t *testing.T) {
	m := NewRoomManager()
	standup := m.CreateRoom("standup", "daily sync")
	lobby := m.CreateRoom("", "")

	assert.Len(t, standup.Room().ID, 8)
	assert.Equal(t, domain.RoomName(lobby.Room().ID), lobby.Room().Name)

	got, ok := m.GetRoom(standup.Room().ID)
	require.True(t, ok)
	assert.Same(t, standup, got)

	list := m.List()
	require.Len(t, list, 2)
	names := []domain.RoomName{list[0].Name, list[1].Name}
	assert.Contains(t, names, domain.RoomName("standup"))
	assert.Equal(t, "daily sync", infoOf(list, standup.Room().ID).Description)

	m.StopRoom(standup.Room().ID)
	_, ok = m.GetRoom(standup.Room().ID)
	assert.False(t, ok)
}

func infoOf(list []core.RoomInfo, id domain.RoomID) core.RoomInfo {
	for _, info := range list {
		if info.ID == id {
			return info
		}
	}
	return core.RoomInfo{}
}

func TestRoomManager_GetOrCreate(t *testing.T) {
	m := NewRoomManager()
	a := m.GetOrCreate("r1")
	b := m.GetOrCreate("r1")
	assert.Same(t, a, b)
	assert.Equal(t, domain.RoomName("r1"), a.Room().Name)

	u, err := domain.NewUser("u1", "Ada")
	require.NoError(t, err)
	a.AddMember(core.NewMemberSession(domain.NewMember(u)))
	assert.Equal(t, 1, m.List()[0].MemberCount)
}

type nopSignal struct{ id int }

func (nopSignal) TrySend(core.Frame) error { return nil }
func (nopSignal) Close()                   {}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	canceled := false
	sc := &nopSignal{id: 1}
	r.BindSignal("s1", sc, func() { canceled = true })

	assert.True(t, r.BindMember("s1", "r1", "u1"))
	assert.False(t, r.BindMember("s2", "r1", "u2"))

	b, ok := r.Lookup("s1")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("r1"), b.RoomID)
	assert.Len(t, r.MembersOfRoom("r1"), 1)

	sid, ok := r.BySignal(sc)
	require.True(t, ok)
	assert.Equal(t, core.SessionID("s1"), sid)

	r.ClearMember("s1")
	assert.Empty(t, r.MembersOfRoom("r1"))

	assert.True(t, r.Cancel("s1"))
	assert.True(t, canceled)

	_, ok = r.Unbind("s1")
	assert.True(t, ok)
	_, ok = r.Lookup("s1")
	assert.False(t, ok)
	assert.False(t, r.Cancel("s1"))
}

func TestPolicyByName(t *testing.T) {
	assert.Equal(t, DropFrame, PolicyByName("drop").OnBackPressure(nil, nil))
	assert.Equal(t, KickMember, PolicyByName("kick").OnBackPressure(nil, nil))
	assert.Equal(t, KickMember, PolicyByName("").OnBackPressure(nil, nil))
}

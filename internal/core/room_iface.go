package core

import (
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []protocol.ParticipantInfo
	Member(uid domain.UserID) (MemberSession, bool)

	// AddMember returns false when the user is already a member.
	AddMember(ms MemberSession) bool
	RemoveMember(uid domain.UserID) bool
	UpdateMember(uid domain.UserID, fn func(*domain.Member)) (protocol.ParticipantInfo, bool)
	Broadcast(from domain.UserID, data Frame) PublishResult
	SendTo(uid domain.UserID, data Frame) error
}

type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Name        domain.RoomName `json:"name"`
	Description string          `json:"description"`
	MemberCount int             `json:"participantCount"`
}

type RoomManager interface {
	CreateRoom(name domain.RoomName, description string) RoomService
	GetOrCreate(id domain.RoomID) RoomService
	GetRoom(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}

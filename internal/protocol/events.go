// Package protocol holds the event names and payloads shared by the room
// server and its clients.
package protocol

import (
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
)

const (
	EventJoinRoom          = "joinRoom"
	EventLeaveRoom         = "leaveRoom"
	EventGetRoomState      = "getRoomState"
	EventMessage           = "message"
	EventICECandidate      = "iceCandidate"
	EventOffer             = "offer"
	EventAnswer            = "answer"
	EventParticipantUpdate = "participantUpdate"
	EventParticipantJoined = "participantJoined"
	EventParticipantLeft   = "participantLeft"
	EventPing              = "ping"
	EventPong              = "pong"
	EventAck               = "ack"
	EventError             = "error"

	// Raised locally by the client channel, never sent on the wire.
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

// ParticipantInfo is the server-authoritative view of one participant.
// Media flags are optional so older snapshots stay decodable.
type ParticipantInfo struct {
	ID          domain.UserID `json:"id"`
	DisplayName string        `json:"displayName"`
	IsHost      bool          `json:"isHost"`
	IsMuted     *bool         `json:"isMuted,omitempty"`
	HasVideo    *bool         `json:"hasVideo,omitempty"`
	IsOnStage   *bool         `json:"isOnStage,omitempty"`
}

func FromMember(m *domain.Member) ParticipantInfo {
	return ParticipantInfo{
		ID:          m.User.ID,
		DisplayName: m.User.DisplayName,
		IsHost:      m.IsHost,
		IsMuted:     domain.Bool(m.IsMuted),
		HasVideo:    domain.Bool(m.HasVideo),
		IsOnStage:   domain.Bool(m.IsOnStage),
	}
}

// Updates returns the media flags carried by the snapshot entry.
func (p ParticipantInfo) Updates() domain.Updates {
	return domain.Updates{IsMuted: p.IsMuted, HasVideo: p.HasVideo, IsOnStage: p.IsOnStage}
}

type JoinRoomRequest struct {
	RoomID      domain.RoomID `json:"roomId"`
	DisplayName string        `json:"displayName"`
	UserID      domain.UserID `json:"userId"`
}

type RoomSnapshot struct {
	ID           domain.RoomID     `json:"id"`
	Name         domain.RoomName   `json:"name"`
	Description  string            `json:"description"`
	Host         domain.UserID     `json:"host"`
	Participants []ParticipantInfo `json:"participants"`
}

type JoinRoomResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Room    RoomSnapshot `json:"room"`
}

type LeaveRoomRequest struct {
	RoomID domain.RoomID `json:"roomId"`
}

type GetRoomStateRequest struct {
	RoomID domain.RoomID `json:"roomId"`
}

type RoomState struct {
	Participants []ParticipantInfo `json:"participants"`
}

type Message struct {
	ID         string        `json:"id"`
	RoomID     domain.RoomID `json:"roomId"`
	SenderID   domain.UserID `json:"senderId"`
	SenderName string        `json:"senderName"`
	Content    string        `json:"content"`
	SentAt     time.Time     `json:"sentAt"`
}

func MessageFrom(m domain.ChatMessage) Message {
	return Message(m)
}

func (m Message) ChatMessage() domain.ChatMessage {
	return domain.ChatMessage(m)
}

// ICECandidate targets peerId outbound; inbound, peerId names the sender.
type ICECandidate struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	PeerID    domain.UserID           `json:"peerId"`
}

// SessionDescription carries an offer or an answer.
type SessionDescription struct {
	SDP    string        `json:"sdp"`
	PeerID domain.UserID `json:"peerId"`
}

type ParticipantUpdate struct {
	RoomID      domain.RoomID  `json:"roomId"`
	UserID      domain.UserID  `json:"userId"`
	DisplayName string         `json:"displayName,omitempty"`
	Updates     domain.Updates `json:"updates"`
}

type ParticipantJoined struct {
	Participant  ParticipantInfo   `json:"participant"`
	Participants []ParticipantInfo `json:"participants"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

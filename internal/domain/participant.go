package domain

const (
	DefaultAvatar = "👤"
	DefaultVolume = 100
)

// Participant is one roster entry as the client sees it.
// MediaStream is owned by the peer connection layer; the roster only
// references it and never stops it.
type Participant struct {
	ID          UserID
	DisplayName string
	IsHost      bool
	IsModerator bool
	IsMuted     bool
	HasVideo    bool
	Volume      int
	IsOnStage   bool
	Avatar      string
	MediaStream *MediaStream
}

// NewParticipant fills the presentation defaults for a fresh entry.
func NewParticipant(id UserID, displayName string, isHost bool) Participant {
	return Participant{
		ID:          id,
		DisplayName: displayName,
		IsHost:      isHost,
		IsMuted:     true,
		Volume:      DefaultVolume,
		Avatar:      DefaultAvatar,
	}
}

// Updates is the partial field set carried by a participantUpdate.
// Nil means "not carried".
type Updates struct {
	IsMuted   *bool `json:"isMuted,omitempty"`
	HasVideo  *bool `json:"hasVideo,omitempty"`
	IsOnStage *bool `json:"isOnStage,omitempty"`
}

func (u Updates) Empty() bool {
	return u.IsMuted == nil && u.HasVideo == nil && u.IsOnStage == nil
}

// Apply shallow-merges only the carried fields.
func (p *Participant) Apply(u Updates) {
	if u.IsMuted != nil {
		p.IsMuted = *u.IsMuted
	}
	if u.HasVideo != nil {
		p.HasVideo = *u.HasVideo
	}
	if u.IsOnStage != nil {
		p.IsOnStage = *u.IsOnStage
	}
}

// Bool is a small helper for building Updates literals.
func Bool(v bool) *bool { return &v }

package domain

// Member represents user's participation meta for a room on the server side.
// No transport or lifecycle logic here.
type Member struct {
	User      *User
	IsHost    bool
	IsMuted   bool
	HasVideo  bool
	IsOnStage bool
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
// New members start muted with video off, matching the client defaults.
func NewMember(user *User) *Member {
	return &Member{User: user, IsMuted: true}
}

// Apply folds a partial update onto the member.
func (m *Member) Apply(u Updates) {
	if u.IsMuted != nil {
		m.IsMuted = *u.IsMuted
	}
	if u.HasVideo != nil {
		m.HasVideo = *u.HasVideo
	}
	if u.IsOnStage != nil {
		m.IsOnStage = *u.IsOnStage
	}
}

// Package roster folds the server's membership events into the canonical,
// de-duplicated participant list of one room session.
//
// A Roster is not safe for concurrent use; the owning session mutates it
// from its event loop only.
package roster

import (
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Roster is an ordered map from participant id to entry.
// The local participant is always present and always materialized first.
type Roster struct {
	self    domain.UserID
	entries map[domain.UserID]*domain.Participant
	order   []domain.UserID // remote ids in arrival order
}

// New creates a roster holding only the local participant.
func New(selfID domain.UserID, displayName string) *Roster {
	self := domain.NewParticipant(selfID, displayName, false)
	return &Roster{
		self:    selfID,
		entries: map[domain.UserID]*domain.Participant{selfID: &self},
	}
}

func (r *Roster) SelfID() domain.UserID { return r.self }

func (r *Roster) Self() domain.Participant { return *r.entries[r.self] }

func (r *Roster) Len() int { return len(r.entries) }

func (r *Roster) Has(id domain.UserID) bool {
	_, ok := r.entries[id]
	return ok
}

func (r *Roster) Get(id domain.UserID) (domain.Participant, bool) {
	p, ok := r.entries[id]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// List materializes the roster with the local entry first.
func (r *Roster) List() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.entries))
	out = append(out, *r.entries[r.self])
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// RemoteIDs lists every non-local participant in arrival order.
func (r *Roster) RemoteIDs() []domain.UserID {
	out := make([]domain.UserID, len(r.order))
	copy(out, r.order)
	return out
}

// Prime applies the join handshake snapshot. The local entry stays first
// whether or not the server echoed it; a server-provided isHost for self is
// honored. It returns the ids of remote entries that were added.
func (r *Roster) Prime(snapshot []protocol.ParticipantInfo) []domain.UserID {
	var added []domain.UserID
	for _, info := range snapshot {
		if info.ID == r.self {
			r.entries[r.self].IsHost = info.IsHost
			continue
		}
		if r.join(info) {
			added = append(added, info.ID)
		}
	}
	return added
}

// Join folds a participantJoined event. Joining an id that is already
// present only refreshes its server-authoritative fields, so replaying the
// same event leaves the roster unchanged. It returns the newly added ids.
func (r *Roster) Join(ev protocol.ParticipantJoined) []domain.UserID {
	var added []domain.UserID
	if r.join(ev.Participant) {
		added = append(added, ev.Participant.ID)
	}
	for _, info := range ev.Participants {
		if info.ID == ev.Participant.ID {
			continue
		}
		if _, ok := r.entries[info.ID]; ok {
			continue
		}
		if r.join(info) {
			added = append(added, info.ID)
		}
	}
	return added
}

func (r *Roster) join(info protocol.ParticipantInfo) bool {
	if info.ID == "" || info.ID == r.self {
		return false
	}
	if p, ok := r.entries[info.ID]; ok {
		if info.DisplayName != "" {
			p.DisplayName = info.DisplayName
		}
		p.IsHost = info.IsHost
		return false
	}
	p := domain.NewParticipant(info.ID, info.DisplayName, info.IsHost)
	p.Apply(info.Updates())
	r.entries[info.ID] = &p
	r.order = append(r.order, info.ID)
	return true
}

// Update shallow-merges the carried fields onto the matching entry.
// Updates for unknown ids are stale or early and are dropped.
func (r *Roster) Update(ev protocol.ParticipantUpdate) bool {
	p, ok := r.entries[ev.UserID]
	if !ok {
		log.Debug().Str("module", "app.roster").Str("user", string(ev.UserID)).Msg("update for unknown participant dropped")
		return false
	}
	p.Apply(ev.Updates)
	if ev.DisplayName != "" {
		p.DisplayName = ev.DisplayName
	}
	return true
}

// UpdateSelf applies a local toggle to the local entry.
func (r *Roster) UpdateSelf(u domain.Updates) domain.Participant {
	p := r.entries[r.self]
	p.Apply(u)
	return *p
}

func (r *Roster) RenameSelf(displayName string) {
	r.entries[r.self].DisplayName = displayName
}

// Leave removes a remote entry. Unknown ids and the local id are no-ops.
func (r *Roster) Leave(id domain.UserID) bool {
	if id == r.self {
		return false
	}
	if _, ok := r.entries[id]; !ok {
		log.Debug().Str("module", "app.roster").Str("user", string(id)).Msg("leave for unknown participant dropped")
		return false
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// AttachStream sets the MediaStream of an existing entry. It is the single
// write the peer connection layer is allowed to make.
func (r *Roster) AttachStream(id domain.UserID, s *domain.MediaStream) bool {
	p, ok := r.entries[id]
	if !ok {
		return false
	}
	p.MediaStream = s
	return true
}

// ResyncResult describes what a snapshot resync changed.
type ResyncResult struct {
	Added        []domain.UserID
	Removed      []domain.UserID
	SelfDiverged bool
}

// Resync replaces the remote set with the server's current truth.
// Remote entries keep their local-only fields; the local entry keeps its
// media toggles and only reports whether the server disagrees with them.
func (r *Roster) Resync(snapshot []protocol.ParticipantInfo) ResyncResult {
	var res ResyncResult
	seen := make(map[domain.UserID]struct{}, len(snapshot))
	for _, info := range snapshot {
		if info.ID == "" {
			continue
		}
		if _, dup := seen[info.ID]; dup {
			continue
		}
		seen[info.ID] = struct{}{}
		if info.ID == r.self {
			self := r.entries[r.self]
			self.IsHost = info.IsHost
			res.SelfDiverged = diverges(self, info.Updates())
			continue
		}
		if p, ok := r.entries[info.ID]; ok {
			p.DisplayName = info.DisplayName
			p.IsHost = info.IsHost
			p.Apply(info.Updates())
			continue
		}
		r.join(info)
		res.Added = append(res.Added, info.ID)
	}
	for _, id := range r.RemoteIDs() {
		if _, ok := seen[id]; !ok {
			r.Leave(id)
			res.Removed = append(res.Removed, id)
		}
	}
	return res
}

func diverges(p *domain.Participant, u domain.Updates) bool {
	return (u.IsMuted != nil && *u.IsMuted != p.IsMuted) ||
		(u.HasVideo != nil && *u.HasVideo != p.HasVideo) ||
		(u.IsOnStage != nil && *u.IsOnStage != p.IsOnStage)
}

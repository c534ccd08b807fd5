package domain

import "sync"

// Track is the minimal view of a remote media track.
// *webrtc.TrackRemote satisfies it.
type Track interface {
	ID() string
	StreamID() string
}

// MediaStream groups the remote tracks received from one peer.
type MediaStream struct {
	id string

	mu     sync.RWMutex
	tracks map[string]Track
	order  []string
}

func NewMediaStream(id string) *MediaStream {
	return &MediaStream{id: id, tracks: make(map[string]Track)}
}

func (s *MediaStream) ID() string { return s.id }

// AddTrack replaces a track with the same id.
func (s *MediaStream) AddTrack(t Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracks[t.ID()]; !ok {
		s.order = append(s.order, t.ID())
	}
	s.tracks[t.ID()] = t
}

func (s *MediaStream) Tracks() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Track, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tracks[id])
	}
	return out
}

package rtc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("peer connection closed")

// Connection is one pion PeerConnection towards a single remote participant.
type Connection struct {
	pc   *webrtc.PeerConnection
	peer domain.UserID

	mu        sync.Mutex
	remoteSet bool
	queued    []webrtc.ICECandidateInit
	onICE     func(webrtc.ICECandidateInit)
	onTrack   func(domain.Track)
	onState   func(core.LinkState)

	closed atomic.Bool
	cancel context.CancelFunc
}

var _ core.MediaConnection = (*Connection)(nil)

func NewConnection(api *webrtc.API, cfg webrtc.Configuration, peer domain.UserID) (*Connection, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, NewError("create peer connection", peer, err)
	}
	return &Connection{pc: pc, peer: peer}, nil
}

func (c *Connection) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "adapters.rtc").Str("peer", string(c.peer)).Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "adapters.rtc").Str("peer", string(c.peer)).Str("peer_connection_state", s.String()).Msg("Peer state")
		var state core.LinkState
		switch s {
		case webrtc.PeerConnectionStateConnected:
			state = core.LinkConnected
		case webrtc.PeerConnectionStateFailed:
			state = core.LinkFailed
		case webrtc.PeerConnectionStateClosed:
			if c.closed.Load() {
				return
			}
			state = core.LinkClosed
		default:
			return
		}
		if fn := c.stateHandler(); fn != nil {
			fn(state)
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "adapters.rtc").
			Str("peer", string(c.peer)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		go drain(ctx, track)
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(track)
		}
	})

	go func() {
		<-ctx.Done()
		c.Close()
	}()
	return nil
}

// drain keeps the receive pipeline moving. A headless participant has no
// renderer, so packets are read and discarded.
func drain(ctx context.Context, track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

func (c *Connection) stateHandler() func(core.LinkState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onState
}

func (c *Connection) AddLocalStream(s core.LocalStream) error {
	for _, t := range s.Tracks() {
		local := t.Track()
		if local == nil {
			continue
		}
		sender, err := c.pc.AddTrack(local)
		if err != nil {
			return NewError("add local track", c.peer, err)
		}
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	}
	return nil
}

func (c *Connection) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, NewError("create offer", c.peer, err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, NewError("set local offer", c.peer, err)
	}
	return *c.pc.LocalDescription(), nil
}

func (c *Connection) ApplyOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, NewError("set remote offer", c.peer, err)
	}
	c.flushCandidates()
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, NewError("create answer", c.peer, err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, NewError("set local answer", c.peer, err)
	}
	return *c.pc.LocalDescription(), nil
}

func (c *Connection) ApplyAnswer(answer webrtc.SessionDescription) error {
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		return NewError("set remote answer", c.peer, err)
	}
	c.flushCandidates()
	return nil
}

func (c *Connection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	c.mu.Lock()
	if !c.remoteSet {
		c.queued = append(c.queued, ci)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	if err := c.pc.AddICECandidate(ci); err != nil {
		return NewError("add ICE candidate", c.peer, err)
	}
	return nil
}

func (c *Connection) flushCandidates() {
	c.mu.Lock()
	c.remoteSet = true
	queued := c.queued
	c.queued = nil
	c.mu.Unlock()
	for _, ci := range queued {
		if err := c.pc.AddICECandidate(ci); err != nil {
			log.Debug().Err(err).Str("module", "adapters.rtc").Str("peer", string(c.peer)).Msg("queued candidate rejected")
		}
	}
}

func (c *Connection) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "adapters.rtc").Str("peer", string(c.peer)).Msg("close error")
	} else {
		log.Info().Str("module", "adapters.rtc").Str("peer", string(c.peer)).Msg("closed")
	}
}

func (c *Connection) IsClosed() bool { return c.closed.Load() }

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onICE = fn
}

// OnTrack sets application-level callback for remote tracks.
func (c *Connection) OnTrack(fn func(domain.Track)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = fn
}

func (c *Connection) OnStateChange(fn func(core.LinkState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

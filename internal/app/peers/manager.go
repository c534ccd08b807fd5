// Package peers maps every remote participant to at most one peer-to-peer
// media connection and drives its negotiation over the signaling channel.
//
// Manager state is owned by the session event loop. Callbacks coming from
// media connections and results of blocking negotiation steps are posted
// back onto the loop through Deps.Post.
package peers

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownPeer        = errors.New("unknown peer")
	ErrNegotiationTimeout = errors.New("negotiation timed out")
)

const (
	DefaultBufferTTL   = 5 * time.Second
	DefaultBufferLimit = 32
	// DefaultNegotiationTimeout bounds how long a link may stay negotiating.
	DefaultNegotiationTimeout = 30 * time.Second
)

// Emitter is the outbound half of the signaling channel.
type Emitter interface {
	Emit(event string, payload any) error
}

// Roster is the part of the roster the manager reads, plus the single field
// it is allowed to write.
type Roster interface {
	Has(id domain.UserID) bool
	AttachStream(id domain.UserID, s *domain.MediaStream) bool
}

type Deps struct {
	Self     domain.UserID
	Factory  core.MediaConnectionFactory
	Signal   Emitter
	Roster   Roster
	Notifier core.Notifier
	// Post runs fn on the owning event loop.
	Post func(fn func())
	// Go runs a blocking negotiation step off the loop. Defaults to a goroutine.
	Go func(fn func())
	// BufferTTL bounds how long early negotiation messages wait for their link.
	// Zero disables buffering.
	BufferTTL   time.Duration
	BufferLimit int
	// NegotiationTimeout fails a link that never reaches connected.
	NegotiationTimeout time.Duration
	// AfterFunc schedules fn off the loop and returns its cancel. Defaults
	// to time.AfterFunc.
	AfterFunc func(d time.Duration, fn func()) (stop func() bool)
	Now       func() time.Time
}

type Manager struct {
	self     domain.UserID
	factory  core.MediaConnectionFactory
	signal   Emitter
	roster   Roster
	notifier core.Notifier
	post     func(func())
	spawn    func(func())
	after    func(time.Duration, func()) func() bool
	deadline time.Duration
	logger   zerolog.Logger

	ready   bool
	local   core.LocalStream
	links   map[domain.UserID]*Link
	failed  map[domain.UserID]struct{}
	pending *pending
}

func NewManager(d Deps) *Manager {
	if d.Go == nil {
		d.Go = func(fn func()) { go fn() }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.BufferLimit <= 0 {
		d.BufferLimit = DefaultBufferLimit
	}
	if d.NegotiationTimeout <= 0 {
		d.NegotiationTimeout = DefaultNegotiationTimeout
	}
	if d.AfterFunc == nil {
		d.AfterFunc = func(delay time.Duration, fn func()) func() bool {
			return time.AfterFunc(delay, fn).Stop
		}
	}
	return &Manager{
		self:     d.Self,
		factory:  d.Factory,
		signal:   d.Signal,
		roster:   d.Roster,
		notifier: d.Notifier,
		post:     d.Post,
		spawn:    d.Go,
		after:    d.AfterFunc,
		deadline: d.NegotiationTimeout,
		logger:   log.With().Str("module", "app.peers").Str("self", string(d.Self)).Logger(),
		links:    make(map[domain.UserID]*Link),
		failed:   make(map[domain.UserID]struct{}),
		pending:  newPending(d.BufferTTL, d.BufferLimit, d.Now),
	}
}

// SetLocalMedia marks local media as settled. stream may be nil when the
// session joined without capture; links are then receive-only.
func (m *Manager) SetLocalMedia(stream core.LocalStream) {
	m.ready = true
	m.local = stream
}

func (m *Manager) Ready() bool { return m.ready }

// Count is the number of live links.
func (m *Manager) Count() int { return len(m.links) }

func (m *Manager) Link(id domain.UserID) (*Link, bool) {
	l, ok := m.links[id]
	return l, ok
}

// States snapshots the negotiation state of every live link.
func (m *Manager) States() map[domain.UserID]core.LinkState {
	out := make(map[domain.UserID]core.LinkState, len(m.links))
	for id, l := range m.links {
		out[id] = l.state
	}
	return out
}

func (m *Manager) Failed(id domain.UserID) bool {
	_, ok := m.failed[id]
	return ok
}

// Sync opens a link for every remote id that lacks one and closes links
// whose participant is no longer listed. Failed peers are left alone until
// Reconnect.
func (m *Manager) Sync(remote []domain.UserID) {
	keep := make(map[domain.UserID]struct{}, len(remote))
	for _, id := range remote {
		keep[id] = struct{}{}
		m.ensure(id)
	}
	for id := range m.links {
		if _, ok := keep[id]; !ok {
			m.Close(id)
		}
	}
}

func (m *Manager) ensure(id domain.UserID) {
	if !m.ready || id == m.self {
		return
	}
	if _, ok := m.links[id]; ok {
		return
	}
	if _, ok := m.failed[id]; ok {
		return
	}
	m.open(id, m.self < id)
}

// Close tears down the link of a participant that left, whatever its state.
func (m *Manager) Close(id domain.UserID) {
	m.pending.drop(id)
	delete(m.failed, id)
	l, ok := m.links[id]
	if !ok {
		return
	}
	delete(m.links, id)
	l.close()
	m.logger.Info().Str("peer", string(id)).Msg("link closed")
}

// CloseAll tears down every link and forgets local media.
func (m *Manager) CloseAll() {
	for id := range m.links {
		m.Close(id)
	}
	m.pending.reset()
	m.failed = make(map[domain.UserID]struct{})
	m.ready = false
	m.local = nil
}

// Reconnect is the user-initiated retry for one peer. The reconnecting side
// always offers.
func (m *Manager) Reconnect(id domain.UserID) error {
	if !m.roster.Has(id) || id == m.self {
		return ErrUnknownPeer
	}
	if l, ok := m.links[id]; ok {
		delete(m.links, id)
		l.close()
	}
	delete(m.failed, id)
	if !m.ready {
		return nil
	}
	m.open(id, true)
	return nil
}

func (m *Manager) open(id domain.UserID, offerer bool) *Link {
	conn, err := m.factory.NewMediaConnection(id)
	if err != nil {
		m.logger.Error().Err(err).Str("peer", string(id)).Msg("create peer connection")
		m.failed[id] = struct{}{}
		m.notify(core.Notice{
			Kind:        core.NoticeConnection,
			Severity:    core.SeverityError,
			Title:       "Connection Error",
			Description: "Failed to establish peer connection. Please try reconnecting.",
		})
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Link{peer: id, conn: conn, state: core.LinkNegotiating, offerer: offerer, cancel: cancel}

	conn.OnICECandidate(func(c webrtc.ICECandidateInit) {
		m.post(func() {
			if m.links[id] != l {
				return
			}
			m.emit(protocol.EventICECandidate, protocol.ICECandidate{Candidate: c, PeerID: id})
		})
	})
	conn.OnTrack(func(t domain.Track) {
		m.post(func() { m.attachTrack(l, t) })
	})
	conn.OnStateChange(func(s core.LinkState) {
		m.post(func() { m.onState(l, s) })
	})

	if err := conn.Start(ctx); err != nil {
		m.fail(l, err)
		return nil
	}
	if m.local != nil {
		if err := conn.AddLocalStream(m.local); err != nil {
			m.logger.Warn().Err(err).Str("peer", string(id)).Msg("attach local tracks; continuing receive-only")
		}
	}
	m.links[id] = l
	l.stopDeadline = m.after(m.deadline, func() {
		m.post(func() { m.expire(l) })
	})
	m.logger.Info().Str("peer", string(id)).Bool("offerer", offerer).Msg("link opened")

	if offerer {
		m.spawn(func() {
			desc, err := conn.CreateOffer()
			m.post(func() {
				if m.links[id] != l {
					return
				}
				if err != nil {
					m.fail(l, err)
					return
				}
				m.emit(protocol.EventOffer, protocol.SessionDescription{SDP: desc.SDP, PeerID: id})
			})
		})
	}

	for _, deliver := range m.pending.take(id) {
		deliver()
	}
	return l
}

// HandleOffer applies a remote offer, opening or restarting the link as
// needed. Offers for peers the roster does not know yet are buffered.
func (m *Manager) HandleOffer(from domain.UserID, sdp string) {
	l, ok := m.links[from]
	switch {
	case !ok:
		if !m.ready || !m.roster.Has(from) {
			m.buffer(from, func() { m.HandleOffer(from, sdp) })
			return
		}
		// An offer is the remote side's explicit (re)connect; it clears a failure.
		delete(m.failed, from)
		l = m.open(from, false)
		if l == nil {
			return
		}
	case l.offerer && !l.remoteSet:
		// Glare: the lower id keeps its own offer.
		if m.self < from {
			m.logger.Debug().Str("peer", string(from)).Msg("glare: keeping local offer")
			return
		}
		l = m.restart(l)
	case l.remoteSet:
		l = m.restart(l)
	}
	if l == nil {
		return
	}

	l.remoteSet = true
	conn := l.conn
	m.spawn(func() {
		answer, err := conn.ApplyOffer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
		m.post(func() {
			if m.links[from] != l {
				return
			}
			if err != nil {
				m.fail(l, err)
				return
			}
			m.emit(protocol.EventAnswer, protocol.SessionDescription{SDP: answer.SDP, PeerID: from})
		})
	})
}

// restart replaces a link with a fresh answering one.
func (m *Manager) restart(l *Link) *Link {
	m.logger.Info().Str("peer", string(l.peer)).Msg("remote restarted negotiation")
	delete(m.links, l.peer)
	l.close()
	return m.open(l.peer, false)
}

func (m *Manager) HandleAnswer(from domain.UserID, sdp string) {
	l, ok := m.links[from]
	if !ok {
		m.buffer(from, func() { m.HandleAnswer(from, sdp) })
		return
	}
	if !l.offerer || l.remoteSet {
		m.logger.Debug().Str("peer", string(from)).Msg("unexpected answer dropped")
		return
	}
	l.remoteSet = true
	conn := l.conn
	m.spawn(func() {
		err := conn.ApplyAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
		if err == nil {
			return
		}
		m.post(func() {
			if m.links[from] == l {
				m.fail(l, err)
			}
		})
	})
}

func (m *Manager) HandleCandidate(from domain.UserID, c webrtc.ICECandidateInit) {
	l, ok := m.links[from]
	if !ok {
		m.buffer(from, func() { m.HandleCandidate(from, c) })
		return
	}
	if err := l.conn.AddICECandidate(c); err != nil {
		m.logger.Debug().Err(err).Str("peer", string(from)).Msg("add ice candidate")
	}
}

func (m *Manager) buffer(from domain.UserID, deliver func()) {
	m.logger.Debug().Str("peer", string(from)).Msg("signal for peer without link buffered")
	m.pending.push(from, deliver)
}

func (m *Manager) onState(l *Link, s core.LinkState) {
	if m.links[l.peer] != l {
		return
	}
	m.logger.Info().Str("peer", string(l.peer)).Str("state", s.String()).Msg("link state")
	switch s {
	case core.LinkConnected:
		l.state = s
		l.clearDeadline()
	case core.LinkFailed:
		m.fail(l, errors.New("peer connection failed"))
	case core.LinkClosed:
		// Closed underneath us; treat like a failure but stay quiet.
		delete(m.links, l.peer)
		l.close()
		m.failed[l.peer] = struct{}{}
	}
}

// expire fails a link that is still negotiating when its deadline passes.
func (m *Manager) expire(l *Link) {
	if m.links[l.peer] != l || l.state != core.LinkNegotiating {
		return
	}
	m.fail(l, ErrNegotiationTimeout)
}

// fail closes the link and parks the peer until a manual reconnect.
func (m *Manager) fail(l *Link, err error) {
	m.logger.Warn().Err(err).Str("peer", string(l.peer)).Msg("link failed")
	if m.links[l.peer] == l {
		delete(m.links, l.peer)
	}
	l.close()
	l.state = core.LinkFailed
	m.failed[l.peer] = struct{}{}
	m.notify(core.Notice{
		Kind:        core.NoticeConnection,
		Severity:    core.SeverityError,
		Title:       "Connection Issue",
		Description: "Lost connection to a participant. Use reconnect to try again.",
	})
}

func (m *Manager) attachTrack(l *Link, t domain.Track) {
	if m.links[l.peer] != l {
		return
	}
	if !m.roster.Has(l.peer) {
		m.logger.Info().Str("peer", string(l.peer)).Str("track", t.ID()).Msg("track for departed participant discarded")
		m.Close(l.peer)
		return
	}
	if l.stream == nil {
		l.stream = domain.NewMediaStream(t.StreamID())
	}
	l.stream.AddTrack(t)
	m.roster.AttachStream(l.peer, l.stream)
	m.logger.Info().Str("peer", string(l.peer)).Str("track", t.ID()).Msg("remote track attached")
}

func (m *Manager) emit(event string, payload any) {
	if err := m.signal.Emit(event, payload); err != nil {
		m.logger.Warn().Err(err).Str("event", event).Msg("emit")
	}
}

func (m *Manager) notify(n core.Notice) {
	if m.notifier != nil {
		m.notifier.Notify(n)
	}
}

// Package session hosts one participant's presence in one room: the roster,
// the message feed, local media and the peer links, all driven from a single
// event loop fed by the signaling channel and by user actions.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/app/feed"
	"github.com/dkeye/Huddle/internal/app/media"
	"github.com/dkeye/Huddle/internal/app/peers"
	"github.com/dkeye/Huddle/internal/app/roster"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrRoomIDEmpty   = errors.New("room id is empty")
	ErrJoinRejected  = errors.New("join rejected")
	ErrNotConnected  = errors.New("not connected")
	ErrSendRejected  = errors.New("message rejected")
	ErrNoLocalTrack  = errors.New("no local track of that kind")
	ErrAlreadyActive = errors.New("session already started")
)

const DefaultRequestTimeout = 10 * time.Second

// ExitKind selects how much cleanup Leave performs.
type ExitKind int

const (
	// ExitNormal closes every link, stops capture and tells the server.
	ExitNormal ExitKind = iota
	// ExitReload only detaches from the channel; the process is about to be
	// replaced and the server's disconnect grace takes care of the leave.
	ExitReload
)

type Config struct {
	RoomID      domain.RoomID
	DisplayName string
	// UserID is generated when empty. Keep it for the lifetime of the
	// process so channel reconnects rebind the same participant.
	UserID         domain.UserID
	RequestTimeout time.Duration
	// SignalBufferTTL bounds how long early negotiation messages are kept.
	SignalBufferTTL time.Duration
	// NegotiationTimeout fails peer links that never connect.
	NegotiationTimeout time.Duration
}

type Deps struct {
	Channel     core.Channel
	Devices     core.DeviceSource
	Connections core.MediaConnectionFactory
	Notifier    core.Notifier
	// Observer is called on the event loop after every visible change.
	// It must not block.
	Observer func(Change)
	Now      func() time.Time
}

type Session struct {
	cfg      Config
	channel  core.Channel
	notifier core.Notifier
	observer func(Change)
	now      func() time.Time
	logger   zerolog.Logger

	loop     *loop
	acquirer *media.Acquirer
	mediaCtx context.Context
	cancel   context.CancelFunc

	// Loop-owned state.
	roster    *roster.Roster
	feed      *feed.Feed
	peers     *peers.Manager
	local     core.LocalStream
	mediaOff  bool
	mediaGen  int
	connected bool
	joined    bool
	left      bool

	startOnce sync.Once
	leaveOnce sync.Once
	subsMu    sync.Mutex
	subs      []core.Subscription
}

func New(cfg Config, d Deps) (*Session, error) {
	if cfg.RoomID == "" {
		return nil, ErrRoomIDEmpty
	}
	name, err := domain.ValidateDisplayName(cfg.DisplayName)
	if err != nil {
		return nil, err
	}
	cfg.DisplayName = name
	if cfg.UserID == "" {
		cfg.UserID = domain.NewUserID()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.SignalBufferTTL <= 0 {
		cfg.SignalBufferTTL = peers.DefaultBufferTTL
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Observer == nil {
		d.Observer = func(Change) {}
	}

	s := &Session{
		cfg:      cfg,
		channel:  d.Channel,
		notifier: d.Notifier,
		observer: d.Observer,
		now:      d.Now,
		logger: log.With().
			Str("module", "app.session").
			Str("room", string(cfg.RoomID)).
			Str("user", string(cfg.UserID)).
			Logger(),
		loop:   newLoop(),
		roster: roster.New(cfg.UserID, cfg.DisplayName),
		feed:   feed.New(),
	}
	s.acquirer = media.NewAcquirer(d.Devices, d.Notifier)
	s.mediaCtx, s.cancel = context.WithCancel(context.Background())
	go s.loop.run()
	s.peers = peers.NewManager(peers.Deps{
		Self:               cfg.UserID,
		Factory:            d.Connections,
		Signal:             d.Channel,
		Roster:             s.roster,
		Notifier:           d.Notifier,
		Post:               func(fn func()) { s.loop.post(fn) },
		BufferTTL:          cfg.SignalBufferTTL,
		NegotiationTimeout: cfg.NegotiationTimeout,
		Now:                d.Now,
	})
	return s, nil
}

func (s *Session) UserID() domain.UserID { return s.cfg.UserID }
func (s *Session) RoomID() domain.RoomID { return s.cfg.RoomID }

// Start subscribes to the channel, performs the join handshake and kicks off
// media acquisition in the background. Room entry does not wait for media.
func (s *Session) Start(ctx context.Context) error {
	err := ErrAlreadyActive
	s.startOnce.Do(func() { err = s.start(ctx) })
	return err
}

func (s *Session) start(ctx context.Context) error {
	s.subscribe()

	snapshot, err := s.requestJoin(ctx, s.cfg.DisplayName)
	if err != nil {
		s.notify(core.Notice{
			Kind:        core.NoticeConnection,
			Severity:    core.SeverityError,
			Title:       "Failed to join room",
			Description: err.Error(),
		})
		s.detach()
		return err
	}

	var gen int
	if err := s.loop.call(ctx, func() {
		s.onJoined(snapshot)
		gen = s.mediaGen
	}); err != nil {
		return err
	}

	s.acquireMedia(gen)
	return nil
}

// acquireMedia settles local media in the background. gen ties the outcome
// to the media toggle that asked for it.
func (s *Session) acquireMedia(gen int) {
	go func() {
		out := s.acquirer.Acquire(s.mediaCtx)
		s.loop.post(func() { s.onMediaSettled(gen, out) })
	}()
}

func (s *Session) requestJoin(ctx context.Context, displayName string) (protocol.RoomSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	var resp protocol.JoinRoomResponse
	err := s.channel.Request(ctx, protocol.EventJoinRoom, protocol.JoinRoomRequest{
		RoomID:      s.cfg.RoomID,
		DisplayName: displayName,
		UserID:      s.cfg.UserID,
	}, &resp)
	if err != nil {
		return protocol.RoomSnapshot{}, fmt.Errorf("join room: %w", err)
	}
	if !resp.Success {
		return protocol.RoomSnapshot{}, fmt.Errorf("%w: %s", ErrJoinRejected, resp.Error)
	}
	return resp.Room, nil
}

func (s *Session) onJoined(snap protocol.RoomSnapshot) {
	added := s.roster.Prime(snap.Participants)
	s.joined = true
	s.connected = true
	s.logger.Info().Int("participants", s.roster.Len()).Msg("joined room")
	if len(added) > 0 {
		s.peers.Sync(s.roster.RemoteIDs())
	}
	s.observer(Change{Kind: ChangeRoster})
	s.observer(Change{Kind: ChangeConnectivity})
}

func (s *Session) onMediaSettled(gen int, out media.Outcome) {
	if s.left || s.mediaOff || gen != s.mediaGen {
		return
	}
	s.local = out.Stream
	s.roster.UpdateSelf(domain.Updates{IsMuted: domain.Bool(out.Muted), HasVideo: domain.Bool(out.HasVideo)})
	s.peers.SetLocalMedia(out.Stream)
	s.peers.Sync(s.roster.RemoteIDs())
	s.logger.Info().Bool("stream", out.Stream != nil).Err(out.Err).Msg("media settled")
	s.observer(Change{Kind: ChangeMedia})
}

// Leave tears the session down. It is safe to call more than once but not
// from inside an Observer.
func (s *Session) Leave(kind ExitKind) {
	s.leaveOnce.Do(func() {
		s.logger.Info().Bool("reload", kind == ExitReload).Msg("leaving room")
		if kind == ExitNormal {
			_ = s.loop.call(context.Background(), func() {
				s.left = true
				s.peers.CloseAll()
				s.local = nil
				if s.joined {
					if err := s.channel.Emit(protocol.EventLeaveRoom, protocol.LeaveRoomRequest{RoomID: s.cfg.RoomID}); err != nil {
						s.logger.Debug().Err(err).Msg("leave notification not sent")
					}
				}
				s.connected = false
			})
			s.cancel()
			s.acquirer.Reset()
		} else {
			_ = s.loop.call(context.Background(), func() { s.left = true })
		}
		s.detach()
	})
}

func (s *Session) detach() {
	s.subsMu.Lock()
	subs := s.subs
	s.subs = nil
	s.subsMu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	s.loop.stop()
	s.loop.wait()
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.loop.done }

func (s *Session) notify(n core.Notice) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}

// Roster returns the participant list with the local entry first.
func (s *Session) Roster() []domain.Participant {
	var out []domain.Participant
	_ = s.loop.call(context.Background(), func() { out = s.roster.List() })
	return out
}

func (s *Session) Self() domain.Participant {
	var out domain.Participant
	_ = s.loop.call(context.Background(), func() { out = s.roster.Self() })
	return out
}

func (s *Session) Messages() []domain.ChatMessage {
	var out []domain.ChatMessage
	_ = s.loop.call(context.Background(), func() { out = s.feed.List() })
	return out
}

func (s *Session) Connected() bool {
	var out bool
	_ = s.loop.call(context.Background(), func() { out = s.connected })
	return out
}

// Links reports the negotiation state of every live peer link.
func (s *Session) Links() map[domain.UserID]core.LinkState {
	var out map[domain.UserID]core.LinkState
	_ = s.loop.call(context.Background(), func() { out = s.peers.States() })
	return out
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type responder func(payload any) (any, error)

type sent struct {
	event   string
	payload any
}

type fakeChannel struct {
	mu        sync.Mutex
	handlers  map[string][]*fakeSub
	responses map[string]responder
	emitted   []sent
	requested []sent
}

type fakeSub struct {
	ch      *fakeChannel
	event   string
	h       core.Handler
	removed bool
}

func (s *fakeSub) Unsubscribe() {
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()
	s.removed = true
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string][]*fakeSub), responses: make(map[string]responder)}
}

func (c *fakeChannel) respond(event string, r responder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[event] = r
}

func (c *fakeChannel) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitted = append(c.emitted, sent{event, payload})
	return nil
}

func (c *fakeChannel) Request(ctx context.Context, event string, payload any, reply any) error {
	c.mu.Lock()
	c.requested = append(c.requested, sent{event, payload})
	r := c.responses[event]
	c.mu.Unlock()
	if r == nil {
		return errors.New("no responder for " + event)
	}
	resp, err := r(payload)
	if err != nil || reply == nil {
		return err
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, reply)
}

func (c *fakeChannel) Subscribe(event string, h core.Handler) core.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := &fakeSub{ch: c, event: event, h: h}
	c.handlers[event] = append(c.handlers[event], sub)
	return sub
}

func (c *fakeChannel) deliver(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	c.mu.Lock()
	var hs []core.Handler
	for _, s := range c.handlers[event] {
		if !s.removed {
			hs = append(hs, s.h)
		}
	}
	c.mu.Unlock()
	for _, h := range hs {
		h(raw)
	}
}

func (c *fakeChannel) emittedOf(event string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, s := range c.emitted {
		if s.event == event {
			out = append(out, s.payload)
		}
	}
	return out
}

func (c *fakeChannel) requestedOf(event string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, s := range c.requested {
		if s.event == event {
			out = append(out, s.payload)
		}
	}
	return out
}

func (c *fakeChannel) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, subs := range c.handlers {
		for _, s := range subs {
			if !s.removed {
				n++
			}
		}
	}
	return n
}

type fakeLocalTrack struct {
	mu      sync.Mutex
	kind    core.DeviceKind
	enabled bool
}

func (t *fakeLocalTrack) ID() string               { return string(t.kind) }
func (t *fakeLocalTrack) Kind() core.DeviceKind    { return t.kind }
func (t *fakeLocalTrack) Track() webrtc.TrackLocal { return nil }

func (t *fakeLocalTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeLocalTrack) SetEnabled(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = v
}

type fakeLocalStream struct {
	tracks []core.LocalTrack

	mu      sync.Mutex
	stopped bool
}

func (s *fakeLocalStream) ID() string                { return "local" }
func (s *fakeLocalStream) Tracks() []core.LocalTrack { return s.tracks }

func (s *fakeLocalStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *fakeLocalStream) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeDevices struct {
	devices  []core.DeviceInfo
	stream   *fakeLocalStream
	captures atomic.Int32
}

func (f *fakeDevices) EnumerateDevices(context.Context) ([]core.DeviceInfo, error) {
	return f.devices, nil
}

func (f *fakeDevices) Capture(context.Context, core.Constraints) (core.LocalStream, error) {
	f.captures.Add(1)
	return f.stream, nil
}

func audioOnly() *fakeDevices {
	return &fakeDevices{
		devices: []core.DeviceInfo{{ID: "mic", Kind: core.AudioInput}},
		stream:  &fakeLocalStream{tracks: []core.LocalTrack{&fakeLocalTrack{kind: core.AudioInput, enabled: true}}},
	}
}

type fakeConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeConn) Start(context.Context) error                   { return nil }
func (c *fakeConn) AddLocalStream(core.LocalStream) error         { return nil }
func (c *fakeConn) ApplyAnswer(webrtc.SessionDescription) error   { return nil }
func (c *fakeConn) AddICECandidate(webrtc.ICECandidateInit) error { return nil }

func (c *fakeConn) OnICECandidate(func(webrtc.ICECandidateInit)) {}
func (c *fakeConn) OnTrack(func(domain.Track))                   {}
func (c *fakeConn) OnStateChange(func(core.LinkState))           {}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer"}, nil
}

func (c *fakeConn) ApplyOffer(webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

type fakeFactory struct {
	mu    sync.Mutex
	conns map[domain.UserID]*fakeConn
}

func (f *fakeFactory) NewMediaConnection(peer domain.UserID) (core.MediaConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConn{}
	f.conns[peer] = c
	return c, nil
}

func (f *fakeFactory) get(peer domain.UserID) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[peer]
}

type harness struct {
	s       *Session
	ch      *fakeChannel
	devices *fakeDevices
	conns   *fakeFactory
	media   chan struct{}

	mu      sync.Mutex
	notices []core.Notice
}

func (h *harness) noticesOf(kind core.NoticeKind) []core.Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []core.Notice
	for _, n := range h.notices {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func joinOK(participants ...protocol.ParticipantInfo) responder {
	return func(payload any) (any, error) {
		req := payload.(protocol.JoinRoomRequest)
		return protocol.JoinRoomResponse{
			Success: true,
			Room:    protocol.RoomSnapshot{ID: req.RoomID, Participants: participants},
		}, nil
	}
}

func newHarness(t *testing.T, devices *fakeDevices, userID domain.UserID) *harness {
	t.Helper()
	h := &harness{
		ch:      newFakeChannel(),
		devices: devices,
		conns:   &fakeFactory{conns: make(map[domain.UserID]*fakeConn)},
		media:   make(chan struct{}, 1),
	}
	s, err := New(Config{RoomID: "r1", DisplayName: "Ada", UserID: userID}, Deps{
		Channel:     h.ch,
		Devices:     devices,
		Connections: h.conns,
		Notifier: core.NotifierFunc(func(n core.Notice) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.notices = append(h.notices, n)
		}),
		Observer: func(c Change) {
			if c.Kind == ChangeMedia {
				h.media <- struct{}{}
			}
		},
	})
	require.NoError(t, err)
	h.s = s
	t.Cleanup(func() { s.Leave(ExitReload) })
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.s.Start(context.Background()))
	select {
	case <-h.media:
	case <-time.After(2 * time.Second):
		t.Fatal("media never settled")
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{DisplayName: "Ada"}, Deps{})
	assert.ErrorIs(t, err, ErrRoomIDEmpty)

	_, err = New(Config{RoomID: "r1", DisplayName: "  "}, Deps{})
	assert.ErrorIs(t, err, domain.ErrDisplayNameEmpty)
}

func TestStart_PrimesSelf(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "")
	h.ch.respond(protocol.EventJoinRoom, joinOK())

	h.start(t)

	roster := h.s.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, h.s.UserID(), roster[0].ID)
	assert.Equal(t, "Ada", roster[0].DisplayName)
	assert.False(t, roster[0].IsHost)
	assert.True(t, h.s.Connected())

	reqs := h.ch.requestedOf(protocol.EventJoinRoom)
	require.Len(t, reqs, 1)
	assert.Equal(t, protocol.JoinRoomRequest{RoomID: "r1", DisplayName: "Ada", UserID: h.s.UserID()}, reqs[0])
}

func TestStart_HostFlagFromServer(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "me")
	h.ch.respond(protocol.EventJoinRoom, joinOK(protocol.ParticipantInfo{ID: "me", DisplayName: "Ada", IsHost: true}))

	h.start(t)

	self := h.s.Self()
	assert.True(t, self.IsHost)
	assert.Len(t, h.s.Roster(), 1)
}

func TestStart_JoinRejected(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "")
	h.ch.respond(protocol.EventJoinRoom, func(any) (any, error) {
		return protocol.JoinRoomResponse{Success: false, Error: "room closed"}, nil
	})

	err := h.s.Start(context.Background())

	assert.ErrorIs(t, err, ErrJoinRejected)
	assert.Len(t, h.noticesOf(core.NoticeConnection), 1)
	assert.Zero(t, h.ch.active())
}

func TestStart_DegradesWithoutDevices(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "")
	h.ch.respond(protocol.EventJoinRoom, joinOK())

	h.start(t)

	self := h.s.Self()
	assert.True(t, h.s.Connected())
	assert.True(t, self.IsMuted)
	assert.False(t, self.HasVideo)
	assert.Len(t, h.noticesOf(core.NoticeDevice), 1)
}

func TestParticipantLeft_ClosesLink(t *testing.T) {
	h := newHarness(t, audioOnly(), "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK(protocol.ParticipantInfo{ID: "p2", DisplayName: "Bob"}))
	h.start(t)
	require.Contains(t, h.s.Links(), domain.UserID("p2"))

	h.ch.deliver(t, protocol.EventParticipantLeft, "p2")

	roster := h.s.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, domain.UserID("a"), roster[0].ID)
	assert.Empty(t, h.s.Links())
	assert.True(t, h.conns.get("p2").IsClosed())
}

func TestParticipantJoined_Idempotent(t *testing.T) {
	h := newHarness(t, audioOnly(), "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK())
	h.start(t)

	ev := protocol.ParticipantJoined{Participant: protocol.ParticipantInfo{ID: "b", DisplayName: "Bob"}}
	h.ch.deliver(t, protocol.EventParticipantJoined, ev)
	h.ch.deliver(t, protocol.EventParticipantJoined, ev)

	assert.Len(t, h.s.Roster(), 2)
	assert.Len(t, h.s.Links(), 1)
	// a < b, so a offers.
	assert.Eventually(t, func() bool { return len(h.ch.emittedOf(protocol.EventOffer)) == 1 }, time.Second, 10*time.Millisecond)
}

func TestParticipantUpdate(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK(protocol.ParticipantInfo{ID: "b", DisplayName: "Bob"}))
	h.start(t)

	h.ch.deliver(t, protocol.EventParticipantUpdate, protocol.ParticipantUpdate{UserID: "b", Updates: domain.Updates{IsMuted: domain.Bool(false)}})
	h.ch.deliver(t, protocol.EventParticipantUpdate, protocol.ParticipantUpdate{UserID: "ghost", Updates: domain.Updates{IsMuted: domain.Bool(false)}})
	h.ch.deliver(t, protocol.EventParticipantUpdate, protocol.ParticipantUpdate{UserID: "a", Updates: domain.Updates{IsMuted: domain.Bool(false)}})

	roster := h.s.Roster()
	require.Len(t, roster, 2)
	assert.True(t, roster[0].IsMuted)
	assert.False(t, roster[1].IsMuted)
	assert.Equal(t, "Bob", roster[1].DisplayName)
}

func TestInboundMessageAppended(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK())
	h.start(t)

	h.ch.deliver(t, protocol.EventMessage, protocol.Message{ID: "m1", RoomID: "r1", SenderID: "b", SenderName: "Bob", Content: "hi"})

	msgs := h.s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestSendMessage_BlankIgnored(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK())
	h.start(t)

	require.NoError(t, h.s.SendMessage(context.Background(), "   \t"))

	assert.Empty(t, h.s.Messages())
	assert.Empty(t, h.ch.requestedOf(protocol.EventMessage))
	assert.Empty(t, h.ch.emittedOf(protocol.EventMessage))
}

func TestSendMessage_AppendedAfterAck(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK())
	h.ch.respond(protocol.EventMessage, func(any) (any, error) { return nil, nil })
	h.start(t)

	require.NoError(t, h.s.SendMessage(context.Background(), "  hello  "))

	msgs := h.s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, domain.UserID("a"), msgs[0].SenderID)
	assert.Equal(t, "Ada", msgs[0].SenderName)
}

func TestSendMessage_Rejected(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK())
	h.ch.respond(protocol.EventMessage, func(any) (any, error) { return "rate limited", nil })
	h.start(t)

	err := h.s.SendMessage(context.Background(), "hello")

	assert.ErrorIs(t, err, ErrSendRejected)
	assert.Empty(t, h.s.Messages())
	assert.Len(t, h.noticesOf(core.NoticeSend), 1)
}

func TestSendMessage_TransportError(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK())
	h.ch.respond(protocol.EventMessage, func(any) (any, error) { return nil, errors.New("timeout") })
	h.start(t)

	require.Error(t, h.s.SendMessage(context.Background(), "hello"))
	assert.Empty(t, h.s.Messages())
}

func TestSetDisplayName_KeepsOldMessages(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK())
	h.ch.respond(protocol.EventMessage, func(any) (any, error) { return nil, nil })
	h.start(t)
	require.NoError(t, h.s.SendMessage(context.Background(), "first"))

	require.NoError(t, h.s.SetDisplayName(context.Background(), "Grace"))
	require.NoError(t, h.s.SendMessage(context.Background(), "second"))

	msgs := h.s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Ada", msgs[0].SenderName)
	assert.Equal(t, "Grace", msgs[1].SenderName)
	assert.Equal(t, "Grace", h.s.Self().DisplayName)

	updates := h.ch.emittedOf(protocol.EventParticipantUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "Grace", updates[0].(protocol.ParticipantUpdate).DisplayName)
}

func TestToggleMute(t *testing.T) {
	devices := audioOnly()
	h := newHarness(t, devices, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK())
	h.start(t)
	track := devices.stream.tracks[0]
	require.False(t, track.Enabled(), "audio starts disabled")

	muted, err := h.s.ToggleMute(context.Background())
	require.NoError(t, err)

	assert.False(t, muted)
	assert.True(t, track.Enabled())
	assert.False(t, h.s.Self().IsMuted)
	updates := h.ch.emittedOf(protocol.EventParticipantUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, domain.Bool(false), updates[0].(protocol.ParticipantUpdate).Updates.IsMuted)
}

func TestToggleVideo_NoCamera(t *testing.T) {
	h := newHarness(t, audioOnly(), "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK())
	h.start(t)

	on, err := h.s.ToggleVideo(context.Background())

	assert.ErrorIs(t, err, ErrNoLocalTrack)
	assert.False(t, on)
	assert.False(t, h.s.Self().HasVideo)
	assert.Empty(t, h.ch.emittedOf(protocol.EventParticipantUpdate))
}

func TestToggleMedia_ClosesAndReopensLinks(t *testing.T) {
	devices := audioOnly()
	h := newHarness(t, devices, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK(protocol.ParticipantInfo{ID: "b", DisplayName: "Bob"}))
	h.start(t)
	first := h.conns.get("b")
	require.NotNil(t, first)
	_, err := h.s.ToggleMute(context.Background())
	require.NoError(t, err)

	on, err := h.s.ToggleMedia(context.Background())
	require.NoError(t, err)
	<-h.media

	assert.False(t, on)
	assert.False(t, h.s.MediaOn())
	assert.Empty(t, h.s.Links())
	assert.True(t, first.IsClosed())
	assert.True(t, devices.stream.isStopped())
	assert.True(t, h.s.Self().IsMuted)
	require.Len(t, h.noticesOf(core.NoticeConnection), 1)
	assert.Equal(t, "Disconnected", h.noticesOf(core.NoticeConnection)[0].Title)
	updates := h.ch.emittedOf(protocol.EventParticipantUpdate)
	require.Len(t, updates, 2)
	assert.Equal(t, domain.Bool(true), updates[1].(protocol.ParticipantUpdate).Updates.IsMuted)

	// Roster changes while off open nothing.
	h.ch.deliver(t, protocol.EventParticipantJoined, protocol.ParticipantJoined{Participant: protocol.ParticipantInfo{ID: "c", DisplayName: "Cy"}})
	assert.Empty(t, h.s.Links())

	on, err = h.s.ToggleMedia(context.Background())
	require.NoError(t, err)
	assert.True(t, on)
	select {
	case <-h.media:
	case <-time.After(2 * time.Second):
		t.Fatal("media never settled again")
	}

	assert.True(t, h.s.MediaOn())
	assert.Equal(t, int32(2), devices.captures.Load(), "acquisition guard re-armed")
	links := h.s.Links()
	assert.Contains(t, links, domain.UserID("b"))
	assert.Contains(t, links, domain.UserID("c"))
	assert.NotSame(t, first, h.conns.get("b"))
	assert.False(t, h.conns.get("b").IsClosed())
}

func TestResync_RemovesStaleAndRepublishesSelf(t *testing.T) {
	h := newHarness(t, audioOnly(), "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK(protocol.ParticipantInfo{ID: "b", DisplayName: "Bob"}))
	h.ch.respond(protocol.EventGetRoomState, func(any) (any, error) {
		return protocol.RoomState{Participants: []protocol.ParticipantInfo{
			{ID: "a", DisplayName: "Ada", IsMuted: domain.Bool(false)},
			{ID: "c", DisplayName: "Cy"},
		}}, nil
	})
	h.start(t)

	require.NoError(t, h.s.Resync(context.Background()))

	ids := []domain.UserID{}
	for _, p := range h.s.Roster() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []domain.UserID{"a", "c"}, ids)
	assert.True(t, h.conns.get("b").IsClosed())
	assert.True(t, h.s.Self().IsMuted)

	updates := h.ch.emittedOf(protocol.EventParticipantUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, domain.Bool(true), updates[0].(protocol.ParticipantUpdate).Updates.IsMuted)
}

func TestChannelReconnect_RejoinsAndResyncs(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK())
	h.ch.respond(protocol.EventGetRoomState, func(any) (any, error) {
		return protocol.RoomState{Participants: []protocol.ParticipantInfo{{ID: "a", DisplayName: "Ada"}, {ID: "b", DisplayName: "Bob"}}}, nil
	})
	h.start(t)

	h.ch.deliver(t, protocol.EventDisconnect, nil)
	assert.False(t, h.s.Connected())

	h.ch.deliver(t, protocol.EventConnect, nil)

	assert.Eventually(t, func() bool { return len(h.s.Roster()) == 2 }, time.Second, 10*time.Millisecond)
	assert.True(t, h.s.Connected())
	assert.Len(t, h.ch.requestedOf(protocol.EventJoinRoom), 2)
	assert.Len(t, h.ch.requestedOf(protocol.EventGetRoomState), 1)
}

func TestConnectError_Notice(t *testing.T) {
	h := newHarness(t, &fakeDevices{}, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK())
	h.start(t)

	h.ch.deliver(t, protocol.EventConnectError, "dial tcp: refused")

	assert.False(t, h.s.Connected())
	notices := h.noticesOf(core.NoticeConnection)
	require.Len(t, notices, 1)
	assert.Equal(t, "dial tcp: refused", notices[0].Description)
}

func TestInboundOfferAnswered(t *testing.T) {
	h := newHarness(t, audioOnly(), "b")
	h.ch.respond(protocol.EventJoinRoom, joinOK(protocol.ParticipantInfo{ID: "a", DisplayName: "Al"}))
	h.start(t)

	h.ch.deliver(t, protocol.EventOffer, protocol.SessionDescription{SDP: "offer", PeerID: "a"})

	assert.Eventually(t, func() bool {
		answers := h.ch.emittedOf(protocol.EventAnswer)
		return len(answers) == 1 && answers[0].(protocol.SessionDescription).PeerID == "a"
	}, time.Second, 10*time.Millisecond)
}

func TestLeave_Normal(t *testing.T) {
	devices := audioOnly()
	h := newHarness(t, devices, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK(protocol.ParticipantInfo{ID: "b", DisplayName: "Bob"}))
	h.start(t)

	h.s.Leave(ExitNormal)

	assert.Len(t, h.ch.emittedOf(protocol.EventLeaveRoom), 1)
	assert.True(t, devices.stream.isStopped())
	assert.True(t, h.conns.get("b").IsClosed())
	assert.Zero(t, h.ch.active())
	<-h.s.Done()

	// Idempotent.
	h.s.Leave(ExitNormal)
	assert.Len(t, h.ch.emittedOf(protocol.EventLeaveRoom), 1)
}

func TestLeave_Reload(t *testing.T) {
	devices := audioOnly()
	h := newHarness(t, devices, "a")
	h.ch.respond(protocol.EventJoinRoom, joinOK())
	h.start(t)

	h.s.Leave(ExitReload)

	assert.Empty(t, h.ch.emittedOf(protocol.EventLeaveRoom))
	assert.False(t, devices.stream.isStopped())
	assert.Zero(t, h.ch.active())
}

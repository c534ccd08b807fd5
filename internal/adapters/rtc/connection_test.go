package rtc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/adapters/device"
	"github.com/dkeye/Huddle/internal/app/media"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestICEConfig(t *testing.T) {
	cfg := ICEConfig{}.Configuration()
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{DefaultSTUN}, cfg.ICEServers[0].URLs)

	cfg = ICEConfig{STUNServers: []string{"stun:a"}, TURNServer: "turn:b", TURNUser: "u", TURNPass: "p"}.Configuration()
	require.Len(t, cfg.ICEServers, 2)
	assert.Equal(t, []string{"turn:b:3478?transport=udp", "turn:b:3478?transport=tcp"}, cfg.ICEServers[1].URLs)
	assert.Equal(t, "u", cfg.ICEServers[1].Username)
}

func newLocalAPI(t *testing.T) *webrtc.API {
	t.Helper()
	m := &webrtc.MediaEngine{}
	require.NoError(t, m.RegisterDefaultCodecs())
	return webrtc.NewAPI(webrtc.WithMediaEngine(m))
}

func TestLoopbackNegotiation(t *testing.T) {
	api := newLocalAPI(t)
	a, err := NewConnection(api, webrtc.Configuration{}, "b")
	require.NoError(t, err)
	b, err := NewConnection(api, webrtc.Configuration{}, "a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connected := make(chan string, 2)
	gotTrack := make(chan string, 4)
	a.OnStateChange(func(s core.LinkState) {
		if s == core.LinkConnected {
			connected <- "a"
		}
	})
	b.OnStateChange(func(s core.LinkState) {
		if s == core.LinkConnected {
			connected <- "b"
		}
	})
	// Candidates from a may reach b before its remote description; b queues them.
	a.OnICECandidate(func(c webrtc.ICECandidateInit) { _ = b.AddICECandidate(c) })
	b.OnICECandidate(func(c webrtc.ICECandidateInit) { _ = a.AddICECandidate(c) })
	b.OnTrack(func(tr domain.Track) { gotTrack <- tr.ID() })
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))

	src := device.NewSynthetic(device.Config{AudioDevice: "mic"})
	stream, err := src.Capture(ctx, media.DefaultConstraints(true, false))
	require.NoError(t, err)
	defer stream.Stop()
	require.NoError(t, a.AddLocalStream(stream))

	offer, err := a.CreateOffer()
	require.NoError(t, err)
	answer, err := b.ApplyOffer(offer)
	require.NoError(t, err)
	require.NoError(t, a.ApplyAnswer(answer))

	for i := 0; i < 2; i++ {
		select {
		case <-connected:
		case <-time.After(10 * time.Second):
			t.Fatal("peers never connected")
		}
	}
	select {
	case id := <-gotTrack:
		assert.Equal(t, "audio", id)
	case <-time.After(10 * time.Second):
		t.Fatal("remote track never arrived")
	}

	a.Close()
	a.Close()
	assert.True(t, a.IsClosed())
	cancel()
	assert.Eventually(t, b.IsClosed, time.Second, 10*time.Millisecond)
}

func TestApplyAnswer_BadSDP(t *testing.T) {
	c, err := NewConnection(newLocalAPI(t), webrtc.Configuration{}, "p")
	require.NoError(t, err)
	defer c.Close()

	err = c.ApplyAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "garbage"})

	var rtcErr *Error
	require.True(t, errors.As(err, &rtcErr))
	assert.Equal(t, "set remote answer", rtcErr.Op)
}

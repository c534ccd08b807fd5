// Package device provides a capture source for hosts without real media
// hardware. Tracks are genuine pion sample tracks; the microphone sends
// Opus silence and the camera negotiates a VP8 track without frames.
package device

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

const (
	frameDuration = 20 * time.Millisecond
	// MaxWidth and MaxHeight bound what the synthetic camera can satisfy.
	MaxWidth  = 1920
	MaxHeight = 1080
)

// opusSilence is a single Opus TOC byte plus padding that decoders render as
// 20ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

type Config struct {
	// AudioDevice and VideoDevice are labels; empty means absent.
	AudioDevice string
	VideoDevice string
	// Denied makes Capture fail as if the user refused access.
	Denied bool
}

type Synthetic struct {
	cfg Config
}

var _ core.DeviceSource = (*Synthetic)(nil)

func NewSynthetic(cfg Config) *Synthetic {
	return &Synthetic{cfg: cfg}
}

func (s *Synthetic) EnumerateDevices(ctx context.Context) ([]core.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []core.DeviceInfo
	if s.cfg.AudioDevice != "" {
		out = append(out, core.DeviceInfo{ID: "synthetic-audio", Label: s.cfg.AudioDevice, Kind: core.AudioInput})
	}
	if s.cfg.VideoDevice != "" {
		out = append(out, core.DeviceInfo{ID: "synthetic-video", Label: s.cfg.VideoDevice, Kind: core.VideoInput})
	}
	return out, nil
}

func (s *Synthetic) Capture(ctx context.Context, c core.Constraints) (core.LocalStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cfg.Denied {
		return nil, core.ErrPermissionDenied
	}
	if c.Audio != nil && s.cfg.AudioDevice == "" {
		return nil, core.ErrDeviceNotFound
	}
	if c.Video != nil {
		if s.cfg.VideoDevice == "" {
			return nil, core.ErrDeviceNotFound
		}
		if c.Video.Width > MaxWidth || c.Video.Height > MaxHeight {
			return nil, core.ErrOverconstrained
		}
	}

	streamID := "huddle-" + uuid.NewString()
	st := &stream{id: streamID, done: make(chan struct{})}
	if c.Audio != nil {
		t, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			"audio", streamID,
		)
		if err != nil {
			return nil, err
		}
		st.tracks = append(st.tracks, &track{kind: core.AudioInput, local: t, enabled: atomicTrue()})
	}
	if c.Video != nil {
		t, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", streamID,
		)
		if err != nil {
			return nil, err
		}
		st.tracks = append(st.tracks, &track{kind: core.VideoInput, local: t, enabled: atomicTrue()})
	}

	st.wg.Add(1)
	go st.pump()
	log.Info().Str("module", "adapters.device").Str("stream", streamID).Int("tracks", len(st.tracks)).Msg("capture started")
	return st, nil
}

func atomicTrue() *atomic.Bool {
	var b atomic.Bool
	b.Store(true)
	return &b
}

type track struct {
	kind    core.DeviceKind
	local   *webrtc.TrackLocalStaticSample
	enabled *atomic.Bool
}

func (t *track) ID() string               { return t.local.ID() }
func (t *track) Kind() core.DeviceKind    { return t.kind }
func (t *track) Enabled() bool            { return t.enabled.Load() }
func (t *track) SetEnabled(v bool)        { t.enabled.Store(v) }
func (t *track) Track() webrtc.TrackLocal { return t.local }

type stream struct {
	id     string
	tracks []core.LocalTrack

	once sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

func (s *stream) ID() string                { return s.id }
func (s *stream) Tracks() []core.LocalTrack { return s.tracks }

// Stop ends the sample pump. Tracks already attached to peer connections
// simply stop producing samples.
func (s *stream) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		log.Info().Str("module", "adapters.device").Str("stream", s.id).Msg("capture stopped")
	})
}

func (s *stream) pump() {
	defer s.wg.Done()
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			for _, lt := range s.tracks {
				t := lt.(*track)
				if t.kind != core.AudioInput || !t.Enabled() {
					continue
				}
				if err := t.local.WriteSample(media.Sample{Data: opusSilence, Duration: frameDuration}); err != nil {
					log.Debug().Err(err).Str("module", "adapters.device").Msg("write sample")
				}
			}
		}
	}
}

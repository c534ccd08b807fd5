// Package media negotiates local capture with graceful degradation.
package media

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/rs/zerolog/log"
)

// Outcome is the settled result of an acquisition attempt. Joining without
// media is always possible, so Connected is true even when Err is set.
type Outcome struct {
	Stream         core.LocalStream
	Connected      bool
	Muted          bool
	HasVideo       bool
	HasAudioDevice bool
	HasVideoDevice bool
	Err            error
}

type call struct {
	done chan struct{}
	out  Outcome
}

// Acquirer makes at most one capture attempt per session. Concurrent
// callers share the in-flight attempt; later callers get its cached outcome
// until Reset.
type Acquirer struct {
	devices  core.DeviceSource
	notifier core.Notifier

	mu   sync.Mutex
	call *call
}

func NewAcquirer(devices core.DeviceSource, notifier core.Notifier) *Acquirer {
	return &Acquirer{devices: devices, notifier: notifier}
}

// Acquire returns the outcome of the session's single capture attempt.
func (a *Acquirer) Acquire(ctx context.Context) Outcome {
	a.mu.Lock()
	if c := a.call; c != nil {
		a.mu.Unlock()
		select {
		case <-c.done:
			return c.out
		case <-ctx.Done():
			return degraded(ctx.Err())
		}
	}
	c := &call{done: make(chan struct{})}
	a.call = c
	a.mu.Unlock()

	out := a.acquire(ctx)

	a.mu.Lock()
	stale := a.call != c
	a.mu.Unlock()
	if stale && out.Stream != nil {
		// Reset ran while capture was in flight; nobody owns this stream.
		out.Stream.Stop()
		out.Stream = nil
	}
	c.out = out
	close(c.done)
	return out
}

// Current returns the cached outcome without starting an attempt.
func (a *Acquirer) Current() (Outcome, bool) {
	a.mu.Lock()
	c := a.call
	a.mu.Unlock()
	if c == nil {
		return Outcome{}, false
	}
	select {
	case <-c.done:
		return c.out, true
	default:
		return Outcome{}, false
	}
}

// Reset stops the captured stream and re-arms the single-attempt guard.
func (a *Acquirer) Reset() {
	a.mu.Lock()
	c := a.call
	a.call = nil
	a.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.done:
		if c.out.Stream != nil {
			c.out.Stream.Stop()
		}
	default:
	}
}

func (a *Acquirer) acquire(ctx context.Context) Outcome {
	devs, err := a.devices.EnumerateDevices(ctx)
	if err != nil {
		return a.degrade(err)
	}
	hasAudio, hasVideo := kinds(devs)
	log.Info().Str("module", "app.media").Bool("audio", hasAudio).Bool("video", hasVideo).Msg("available devices")
	if !hasAudio && !hasVideo {
		return a.degrade(core.ErrNoDevicesAvailable)
	}

	c := DefaultConstraints(hasAudio, hasVideo)
	stream, err := a.devices.Capture(ctx, c)
	if errors.Is(err, core.ErrOverconstrained) {
		log.Warn().Err(err).Str("module", "app.media").Msg("retrying capture with relaxed constraints")
		stream, err = a.devices.Capture(ctx, c.Relaxed())
	}
	if err != nil {
		out := a.degrade(err)
		out.HasAudioDevice, out.HasVideoDevice = hasAudio, hasVideo
		return out
	}

	// Both kinds start disabled: audio and video are explicit opt-ins.
	for _, t := range stream.Tracks() {
		t.SetEnabled(false)
	}
	log.Info().Str("module", "app.media").Str("stream", stream.ID()).Int("tracks", len(stream.Tracks())).Msg("media setup completed")
	return Outcome{
		Stream:         stream,
		Connected:      true,
		Muted:          true,
		HasVideo:       false,
		HasAudioDevice: hasAudio,
		HasVideoDevice: hasVideo,
	}
}

func (a *Acquirer) degrade(err error) Outcome {
	log.Warn().Err(err).Str("module", "app.media").Msg("media setup degraded")
	if a.notifier != nil {
		a.notifier.Notify(Classify(err))
	}
	return degraded(err)
}

func degraded(err error) Outcome {
	return Outcome{Connected: true, Muted: true, HasVideo: false, Err: err}
}

func kinds(devs []core.DeviceInfo) (audio, video bool) {
	for _, d := range devs {
		switch d.Kind {
		case core.AudioInput:
			audio = true
		case core.VideoInput:
			video = true
		}
	}
	return audio, video
}

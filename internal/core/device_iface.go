package core

import (
	"context"
	"errors"

	"github.com/pion/webrtc/v4"
)

type DeviceKind string

const (
	AudioInput DeviceKind = "audioinput"
	VideoInput DeviceKind = "videoinput"
)

var (
	ErrNoDevicesAvailable = errors.New("no media devices available")
	ErrDeviceNotFound     = errors.New("media device not found")
	ErrPermissionDenied   = errors.New("media access denied")
	ErrDeviceBusy         = errors.New("media device busy")
	ErrOverconstrained    = errors.New("media constraints not satisfiable")
)

type DeviceInfo struct {
	ID    string
	Label string
	Kind  DeviceKind
}

type AudioConstraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// VideoConstraints with zero Width/Height carry no resolution target.
type VideoConstraints struct {
	Width      int
	Height     int
	FacingMode string
}

// Constraints requests only the kinds that are non-nil.
type Constraints struct {
	Audio *AudioConstraints
	Video *VideoConstraints
}

type LocalTrack interface {
	ID() string
	Kind() DeviceKind
	Enabled() bool
	SetEnabled(bool)
	Track() webrtc.TrackLocal
}

// LocalStream is the local capture. Only media acquisition stops it;
// peer links only read its tracks.
type LocalStream interface {
	ID() string
	Tracks() []LocalTrack
	Stop()
}

// FirstTrack returns the first track of kind, or nil.
func FirstTrack(s LocalStream, kind DeviceKind) LocalTrack {
	if s == nil {
		return nil
	}
	for _, t := range s.Tracks() {
		if t.Kind() == kind {
			return t
		}
	}
	return nil
}

type DeviceSource interface {
	EnumerateDevices(ctx context.Context) ([]DeviceInfo, error)
	Capture(ctx context.Context, c Constraints) (LocalStream, error)
}

// Relaxed drops the resolution and facing targets but keeps the kinds.
func (c Constraints) Relaxed() Constraints {
	out := Constraints{Audio: c.Audio}
	if c.Video != nil {
		out.Video = &VideoConstraints{}
	}
	return out
}

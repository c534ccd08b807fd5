package media

import (
	"errors"

	"github.com/dkeye/Huddle/internal/core"
)

// Classify turns an acquisition error into a specific, recoverable notice.
func Classify(err error) core.Notice {
	msg := "Unable to access media devices"
	action := "You can still join without devices"
	switch {
	case errors.Is(err, core.ErrNoDevicesAvailable), errors.Is(err, core.ErrDeviceNotFound):
		msg = "No camera or microphone found"
	case errors.Is(err, core.ErrPermissionDenied):
		msg = "Media access denied"
		action = "Please grant permission to use your camera/microphone"
	case errors.Is(err, core.ErrDeviceBusy):
		msg = "Media device is in use by another application"
		action = "Please close other apps using your camera/microphone"
	case errors.Is(err, core.ErrOverconstrained):
		msg = "Media device constraints not satisfied"
		action = "Joined without media"
	}
	return core.Notice{
		Kind:        core.NoticeDevice,
		Severity:    core.SeverityWarning,
		Title:       "Media Device Notice",
		Description: msg + ". " + action,
	}
}

package media

import "github.com/dkeye/Huddle/internal/core"

const (
	idealWidth  = 1280
	idealHeight = 720
)

// DefaultConstraints requests only the kinds known to exist.
func DefaultConstraints(audio, video bool) core.Constraints {
	var c core.Constraints
	if audio {
		c.Audio = &core.AudioConstraints{
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
		}
	}
	if video {
		c.Video = &core.VideoConstraints{
			Width:      idealWidth,
			Height:     idealHeight,
			FacingMode: "user",
		}
	}
	return c
}

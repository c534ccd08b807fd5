package session

import (
	"context"
	"fmt"

	"github.com/dkeye/Huddle/internal/app/feed"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
)

// ToggleMute flips the local audio track and publishes the new state.
// It returns whether the local user is now muted.
func (s *Session) ToggleMute(ctx context.Context) (bool, error) {
	var (
		muted bool
		err   error
	)
	callErr := s.loop.call(ctx, func() {
		self := s.roster.Self()
		muted = !self.IsMuted
		track := core.FirstTrack(s.local, core.AudioInput)
		if track == nil && !muted {
			muted, err = true, ErrNoLocalTrack
			s.deviceMissing("microphone")
			return
		}
		if track != nil {
			track.SetEnabled(!muted)
		}
		s.publishSelf(domain.Updates{IsMuted: domain.Bool(muted)})
	})
	if callErr != nil {
		return muted, callErr
	}
	return muted, err
}

// ToggleVideo flips the local video track and publishes the new state.
// It returns whether video is now on.
func (s *Session) ToggleVideo(ctx context.Context) (bool, error) {
	var (
		on  bool
		err error
	)
	callErr := s.loop.call(ctx, func() {
		self := s.roster.Self()
		on = !self.HasVideo
		track := core.FirstTrack(s.local, core.VideoInput)
		if track == nil && on {
			on, err = false, ErrNoLocalTrack
			s.deviceMissing("camera")
			return
		}
		if track != nil {
			track.SetEnabled(on)
		}
		s.publishSelf(domain.Updates{HasVideo: domain.Bool(on)})
	})
	if callErr != nil {
		return on, callErr
	}
	return on, err
}

// ToggleMedia takes local media offline without leaving the room, or brings
// it back with a fresh capture attempt. Going offline closes every peer link
// and releases the devices. It returns whether media is now on.
func (s *Session) ToggleMedia(ctx context.Context) (bool, error) {
	var (
		on  bool
		gen int
	)
	if err := s.loop.call(ctx, func() {
		s.mediaOff = !s.mediaOff
		s.mediaGen++
		on, gen = !s.mediaOff, s.mediaGen
		if on {
			s.logger.Info().Msg("media back on")
			return
		}
		s.peers.CloseAll()
		s.local = nil
		s.publishSelf(domain.Updates{IsMuted: domain.Bool(true), HasVideo: domain.Bool(false)})
		s.logger.Info().Msg("media off")
		s.notify(core.Notice{
			Kind:        core.NoticeConnection,
			Severity:    core.SeverityInfo,
			Title:       "Disconnected",
			Description: "Media and peer connections are off. You are still in the room.",
		})
		s.observer(Change{Kind: ChangeMedia})
	}); err != nil {
		return false, err
	}
	if !on {
		s.acquirer.Reset()
		return false, nil
	}
	s.acquireMedia(gen)
	return true, nil
}

// MediaOn reports whether local media is enabled.
func (s *Session) MediaOn() bool {
	var out bool
	_ = s.loop.call(context.Background(), func() { out = !s.mediaOff })
	return out
}

func (s *Session) deviceMissing(what string) {
	s.notify(core.Notice{
		Kind:        core.NoticeDevice,
		Severity:    core.SeverityWarning,
		Title:       "Media Device Notice",
		Description: fmt.Sprintf("No %s is available in this session.", what),
	})
}

// publishSelf updates the local entry first, then tells the room.
func (s *Session) publishSelf(u domain.Updates) {
	self := s.roster.UpdateSelf(u)
	s.emit(protocol.EventParticipantUpdate, protocol.ParticipantUpdate{
		RoomID:  s.cfg.RoomID,
		UserID:  self.ID,
		Updates: u,
	})
	s.observer(Change{Kind: ChangeRoster})
}

// SetDisplayName renames the local participant. Messages already sent keep
// the old name.
func (s *Session) SetDisplayName(ctx context.Context, name string) error {
	name, err := domain.ValidateDisplayName(name)
	if err != nil {
		return err
	}
	return s.loop.call(ctx, func() {
		s.roster.RenameSelf(name)
		s.emit(protocol.EventParticipantUpdate, protocol.ParticipantUpdate{
			RoomID:      s.cfg.RoomID,
			UserID:      s.cfg.UserID,
			DisplayName: name,
		})
		s.observer(Change{Kind: ChangeRoster})
	})
}

// SendMessage sends content to the room and appends it to the local feed
// once the server acknowledged it. Blank content is ignored. On error the
// feed is unchanged so the caller can keep the input.
func (s *Session) SendMessage(ctx context.Context, content string) error {
	var (
		msg       domain.ChatMessage
		ok        bool
		connected bool
	)
	if err := s.loop.call(ctx, func() {
		self := s.roster.Self()
		msg, ok = feed.Compose(s.cfg.RoomID, feed.Sender{ID: self.ID, DisplayName: self.DisplayName}, content, s.now())
		connected = s.connected
	}); err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if !connected {
		s.sendFailed(ErrNotConnected)
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	var reject *string
	err := s.channel.Request(ctx, protocol.EventMessage, protocol.MessageFrom(msg), &reject)
	if err == nil && reject != nil && *reject != "" {
		err = fmt.Errorf("%w: %s", ErrSendRejected, *reject)
	}
	if err != nil {
		s.sendFailed(err)
		return fmt.Errorf("send message: %w", err)
	}

	return s.loop.call(context.Background(), func() {
		s.feed.Append(msg)
		s.observer(Change{Kind: ChangeMessage, Message: msg})
	})
}

func (s *Session) sendFailed(err error) {
	s.logger.Warn().Err(err).Msg("message not sent")
	s.notify(core.Notice{
		Kind:        core.NoticeSend,
		Severity:    core.SeverityError,
		Title:       "Message Not Sent",
		Description: "Failed to send message. Please try again.",
	})
}

// Resync replaces the remote roster with the server's snapshot and
// republishes local toggles the server disagrees with.
func (s *Session) Resync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	var state protocol.RoomState
	if err := s.channel.Request(ctx, protocol.EventGetRoomState, protocol.GetRoomStateRequest{RoomID: s.cfg.RoomID}, &state); err != nil {
		return fmt.Errorf("get room state: %w", err)
	}
	return s.loop.call(ctx, func() {
		if s.left {
			return
		}
		res := s.roster.Resync(state.Participants)
		for _, id := range res.Removed {
			s.peers.Close(id)
		}
		s.peers.Sync(s.roster.RemoteIDs())
		if res.SelfDiverged {
			self := s.roster.Self()
			s.logger.Info().Msg("server state diverged from local toggles, republishing")
			s.publishSelf(domain.Updates{
				IsMuted:   domain.Bool(self.IsMuted),
				HasVideo:  domain.Bool(self.HasVideo),
				IsOnStage: domain.Bool(self.IsOnStage),
			})
		}
		s.logger.Info().Int("added", len(res.Added)).Int("removed", len(res.Removed)).Msg("roster resynced")
		s.observer(Change{Kind: ChangeRoster})
	})
}

// Reconnect retries the media link to one participant.
func (s *Session) Reconnect(ctx context.Context, peer domain.UserID) error {
	var err error
	if callErr := s.loop.call(ctx, func() { err = s.peers.Reconnect(peer) }); callErr != nil {
		return callErr
	}
	return err
}

func (s *Session) emit(event string, payload any) {
	if err := s.channel.Emit(event, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", event).Msg("emit")
	}
}

package player

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/app/notification"
	"github.com/osa030/quaver/internal/app/playback"
)

// eventLoop handles playback events until Shutdown.
func (s *Service) eventLoop() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("player: event loop panicked: %v", r)
			if s.ctx.Err() == nil {
				zlog.Info().Msg("player: restarting event loop")
				go s.eventLoop()
			}
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-s.controller.Events():
			if !ok {
				return
			}
			s.handleEvent(event)
		}
	}
}

func (s *Service) handleEvent(event playback.Event) {
	zlog.Debug().Msgf("player: event: type=%s index=%d queue_len=%d state=%s", event.Type, event.Index, event.QueueLen, event.State)

	// The current item can change without an item start (restore, removal
	// while paused)
	if event.Item != nil && !s.mirrorsLike(event.Item.ID) {
		s.refreshLike(s.ctx, event.Item.ID)
	}

	var kind notification.Kind
	switch event.Type {
	case playback.EventItemStarted:
		kind = notification.KindItemStarted

	case playback.EventQueueChanged, playback.EventQueueEmpty:
		if event.QueueLen > 0 && event.State == playback.StateIdle && s.autoplay.CompareAndSwap(true, false) {
			if err := s.controller.Play(); err != nil {
				zlog.Warn().Err(err).Msg("player: radio autoplay failed")
			}
		}
		kind = notification.KindQueueChanged

	case playback.EventStateChanged, playback.EventSeeked, playback.EventScrubChanged:
		kind = notification.KindStateChanged

	case playback.EventQueueEnded:
		kind = notification.KindQueueEnded

	case playback.EventRepeatModeChanged:
		kind = notification.KindRepeatChanged

	case playback.EventQueueDepleting:
		s.radio.OnDepleting()
		return

	default:
		// Item ended: the controller already moved on
		return
	}

	n := notification.Notification{
		Kind:     kind,
		Item:     event.Item,
		Index:    event.Index,
		QueueLen: event.QueueLen,
		State:    event.State.String(),
	}
	if event.Item != nil {
		n.Timestamp = s.mirroredLike(event.Item.ID)
	}
	n.RepeatMode = s.controller.GetRepeatMode().String()
	s.notification.Broadcast(n)
}

// SnapshotNotification builds the snapshot sent to a new subscriber.
func (s *Service) SnapshotNotification() notification.Notification {
	st := s.Status()
	return notification.Notification{
		Kind:       notification.KindSnapshot,
		Item:       st.Playback.Current,
		Index:      st.Playback.Index,
		QueueLen:   len(st.Playback.Queue),
		State:      st.Playback.State.String(),
		RepeatMode: st.Playback.RepeatMode.String(),
		Timestamp:  st.LikedAt,
		TargetID:   st.Radio.ID,
	}
}

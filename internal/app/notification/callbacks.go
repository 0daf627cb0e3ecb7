package notification

import (
	"time"

	"github.com/osa030/soundqueue/internal/app/playback"
	"github.com/osa030/soundqueue/internal/domain/sound"
	zlog "github.com/rs/zerolog/log"
)

// Callbacks returns playback callbacks that broadcast every event of the sound id.
// When withProgress is false, progress ticks are not reported.
func (m *Manager) Callbacks(id sound.ID, withProgress bool) playback.Callbacks {
	emit := func(e Event) {
		e.SoundID = id
		if err := m.Broadcast(e); err != nil {
			zlog.Warn().Err(err).Msgf("notification: failed to broadcast %s", e.Type)
		}
	}
	offsetEvent := func(t EventType) func(time.Duration) {
		return func(offset time.Duration) { emit(Event{Type: t, Offset: offset}) }
	}

	cb := playback.Callbacks{
		OnLoading: func(percent float64, total, loaded int64) {
			emit(Event{Type: EventLoading, Percent: percent, Total: total, Loaded: loaded})
		},
		OnStarted: offsetEvent(EventStarted),
		OnPaused:  offsetEvent(EventPaused),
		OnResumed: offsetEvent(EventResumed),
		OnStopped: offsetEvent(EventStopped),
		OnEnded: func(willPlayNext bool) {
			emit(Event{Type: EventEnded, WillPlayNext: willPlayNext})
		},
		OnError: func(err error) {
			emit(Event{Type: EventError, Err: err.Error()})
		},
	}
	if withProgress {
		cb.OnPlaying = func(percent float64, duration, playTime time.Duration) {
			emit(Event{Type: EventPlaying, Percent: percent, Duration: duration, PlayTime: playTime})
		}
	}
	return cb
}

package playback

import (
	"context"
	"time"
)

// startProgressLocked starts the progress loop of a playing sound.
// The loop is owned by the source token seq and exits once it changes.
func (p *Player) startProgressLocked(s *Sound, seq uint64) {
	ctx, cancel := context.WithCancel(p.ctx)
	s.progressCancel = cancel
	interval := p.config.ProgressInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !p.tickProgress(s, seq) {
					return
				}
			}
		}
	}()
}

// tickProgress reports progress once. Returns false when the loop must exit.
func (p *Player) tickProgress(s *Sound, seq uint64) bool {
	p.mu.Lock()
	if s.sourceSeq != seq || s.state != StatePlaying {
		p.mu.Unlock()
		return false
	}
	playTime := p.audio.ClockTime() - s.startTime + s.playTimeOffset
	var percent float64
	if s.duration > 0 {
		percent = 100 * float64(playTime) / float64(s.duration)
	}
	s.playTime = playTime
	s.playedPercentage = percent
	duration := s.duration
	cb := s.callbacks.OnPlaying
	p.mu.Unlock()

	if cb != nil {
		cb(percent, duration, playTime)
	}
	return true
}

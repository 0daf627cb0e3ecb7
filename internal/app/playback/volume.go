package playback

import (
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

func clampVolume(v int) int {
	return lo.Clamp(v, 0, 100)
}

// SetVolume sets the output volume, clamped to 0..100.
func (p *Player) SetVolume(volume int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setVolumeLocked(volume)
}

// GetVolume returns the output volume.
func (p *Player) GetVolume() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.volume
}

// Mute sets the volume to 0, remembering the previous volume.
func (p *Player) Mute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muteLocked()
}

// UnMute restores the volume from before Mute.
func (p *Player) UnMute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unMuteLocked()
}

// IsMuted reports whether the volume is 0.
func (p *Player) IsMuted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.volume == 0
}

// SetVisibility mutes while hidden when VisibilityAutoMute is enabled.
// Showing again only undoes a mute applied by hiding.
func (p *Player) SetVisibility(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.config.VisibilityAutoMute {
		return
	}
	switch {
	case !visible && p.volume > 0:
		p.muteLocked()
		p.autoMuted = true
	case visible && p.autoMuted:
		p.unMuteLocked()
	}
}

// SetLoopQueue toggles wrapping to the first sound after the last one.
func (p *Player) SetLoopQueue(loop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loopQueue = loop
}

// GetLoopQueue reports whether the queue loops.
func (p *Player) GetLoopQueue() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loopQueue
}

func (p *Player) muteLocked() {
	if p.volume > 0 {
		p.postMuteVolume = p.volume
	}
	p.setVolumeLocked(0)
}

func (p *Player) unMuteLocked() {
	v := p.postMuteVolume
	if v == 0 {
		v = *p.config.Volume
	}
	if v == 0 {
		v = DefaultVolume
	}
	p.autoMuted = false
	p.setVolumeLocked(v)
}

func (p *Player) setVolumeLocked(volume int) {
	p.volume = clampVolume(volume)
	p.audio.SetGain(float64(p.volume) / 100)

	if p.config.PersistVolume && p.store != nil {
		if err := p.store.SaveVolume(p.volume); err != nil {
			zlog.Warn().Err(err).Msg("playback: failed to persist volume")
		}
	}
}

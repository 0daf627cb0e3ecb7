package playback

import (
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/osa030/soundqueue/internal/domain/sound"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// AddSoundToQueue creates a sound from attrs and inserts it at placement.
// Returns ErrDuplicateID when the id is already queued.
func (p *Player) AddSoundToQueue(attrs SoundAttributes, placement Placement) (*Sound, error) {
	sounds, err := p.AddSoundsToQueue([]SoundAttributes{attrs}, placement)
	if err != nil {
		return nil, err
	}
	return sounds[0], nil
}

// AddSoundsToQueue inserts one sound per attrs at placement, keeping their
// order. Nothing is queued when any id is a duplicate.
func (p *Player) AddSoundsToQueue(attrs []SoundAttributes, placement Placement) ([]*Sound, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[sound.ID]struct{}, len(attrs))
	sounds := make([]*Sound, 0, len(attrs))
	for _, a := range attrs {
		if a.ID.IsZero() {
			a.ID = sound.NewID()
		}
		if _, dup := seen[a.ID]; dup || p.indexOfIDLocked(a.ID) >= 0 {
			return nil, errors.Wrapf(ErrDuplicateID, "id %s", a.ID)
		}
		seen[a.ID] = struct{}{}
		sounds = append(sounds, p.newSoundLocked(a))
	}
	if len(sounds) == 0 {
		return sounds, nil
	}

	switch placement {
	case PlacementPrepend:
		if len(p.queue) > 0 {
			p.currentIndex += len(sounds)
		}
		p.queue = slices.Insert(p.queue, 0, sounds...)
	case PlacementAfterCurrent:
		if len(p.queue) == 0 {
			p.queue = append(p.queue, sounds...)
		} else {
			p.queue = slices.Insert(p.queue, p.currentIndex+1, sounds...)
		}
	default:
		p.queue = append(p.queue, sounds...)
	}

	for _, s := range sounds {
		zlog.Debug().Msgf("playback: queued %s (%s, %d in queue)", s.id, placement, len(p.queue))
	}
	return sounds, nil
}

// ResetQueue drops every sound. The playing sound is stopped first unless
// Config.StopOnReset is false, in which case it plays out detached.
func (p *Player) ResetQueue() {
	var calls callbackQueue

	p.mu.Lock()
	p.intent++
	p.playTarget = nil
	if p.active != nil && p.config.stopOnReset() {
		p.stopLocked(p.active, &calls)
	}
	for _, s := range p.queue {
		s.epoch++
	}
	p.queue = make([]*Sound, 0)
	p.currentIndex = 0
	p.mu.Unlock()
	calls.run()

	zlog.Debug().Msg("playback: queue reset")
}

// GetQueue returns a copy of the queue.
func (p *Player) GetQueue() []*Sound {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.queue)
}

// Snapshot returns the info of every queued sound and the cursor.
func (p *Player) Snapshot() ([]Info, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	infos := lo.Map(p.queue, func(s *Sound, _ int) Info { return s.infoLocked() })
	return infos, p.currentIndex
}

// Current returns the sound at the cursor, nil when the queue is empty.
func (p *Player) Current() *Sound {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, _ := p.resolveTargetLocked(Current(), false)
	return s
}

// CurrentIndex returns the cursor position.
func (p *Player) CurrentIndex() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentIndex
}

// Lookup returns the sound selected by sel without moving the cursor.
func (p *Player) Lookup(sel Selector) *Sound {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, _ := p.resolveTargetLocked(sel, false)
	return s
}

// resolveTargetLocked returns the selected sound and its position, or nil and -1.
// The cursor moves to the result only when updateIndex is set.
func (p *Player) resolveTargetLocked(sel Selector, updateIndex bool) (*Sound, int) {
	if len(p.queue) == 0 {
		return nil, -1
	}

	idx := -1
	switch sel.kind {
	case selectCurrent:
		if p.currentIndex < len(p.queue) {
			idx = p.currentIndex
		}
	case selectID:
		idx = p.indexOfIDLocked(sel.id)
	case selectNext:
		if p.currentIndex+1 < len(p.queue) {
			idx = p.currentIndex + 1
		}
	case selectPrevious:
		if p.currentIndex-1 >= 0 {
			idx = p.currentIndex - 1
		}
	case selectFirst:
		idx = 0
	case selectLast:
		idx = len(p.queue) - 1
	}
	if idx < 0 {
		return nil, -1
	}

	if updateIndex {
		p.currentIndex = idx
	}
	return p.queue[idx], idx
}

func (p *Player) indexOfIDLocked(id sound.ID) int {
	_, idx, ok := lo.FindIndexOf(p.queue, func(s *Sound) bool { return s.id == id })
	if !ok {
		return -1
	}
	return idx
}

func (p *Player) indexOfLocked(s *Sound) int {
	return slices.Index(p.queue, s)
}

func (p *Player) newSoundLocked(attrs SoundAttributes) *Sound {
	loop := p.config.LoopSong
	if attrs.Loop != nil {
		loop = *attrs.Loop
	}
	s := &Sound{
		mu:        &p.mu,
		id:        attrs.ID,
		title:     attrs.Title,
		sources:   slices.Clone(attrs.Sources),
		loop:      loop,
		callbacks: attrs.Callbacks,
		raw:       attrs.RawBytes,
		state:     StateStopped,
	}
	if attrs.Buffer != nil {
		s.buffer = attrs.Buffer
		s.bufferedAt = time.Now()
		s.duration = attrs.Buffer.Duration()
	}
	return s
}

package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/osa030/soundqueue/internal/domain/sound"
	zlog "github.com/rs/zerolog/log"
)

// Player manages the sound queue and drives playback through an AudioService.
type Player struct {
	mu sync.RWMutex

	// Queue management
	queue        []*Sound
	currentIndex int
	active       *Sound // Sound that owns a source, possibly detached from the queue

	// Output
	volume         int
	postMuteVolume int
	autoMuted      bool
	loopQueue      bool

	// Staleness tokens
	intent     uint64 // Bumped by every Play/Pause/Stop/Reset
	playTarget *Sound // Sound of the latest intent when it was a Play
	sourceSeq  uint64

	// Configuration
	config Config

	// Services
	audio     AudioService
	transport TransportService
	store     VolumeStore

	// Context
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// Option configures a Player.
type Option func(*Player)

// WithVolumeStore sets the store used when Config.PersistVolume is enabled.
func WithVolumeStore(store VolumeStore) Option {
	return func(p *Player) {
		p.store = store
	}
}

// PlayOptions selects the sound to play and an optional absolute offset.
type PlayOptions struct {
	Selector Selector
	Offset   *time.Duration
}

// NewPlayer creates a new player. Unset config fields take their defaults.
func NewPlayer(config Config, audio AudioService, transport TransportService, opts ...Option) (*Player, error) {
	if audio == nil || transport == nil {
		return nil, errors.New("audio and transport services are required")
	}
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		queue:     make([]*Sound, 0),
		volume:    *config.Volume,
		loopQueue: config.LoopQueue,
		config:    config,
		audio:     audio,
		transport: transport,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(p)
	}

	if config.PersistVolume && p.store != nil {
		v, ok, err := p.store.LoadVolume()
		if err != nil {
			zlog.Warn().Err(err).Msg("playback: failed to load stored volume")
		} else if ok {
			p.volume = clampVolume(v)
		}
	}
	p.audio.SetGain(float64(p.volume) / 100)

	return p, nil
}

// Play plays the selected sound. A different playing sound is stopped first.
// Returns ErrSuperseded when a newer command overtook the request while loading,
// unless that command was a Play of the same sound.
func (p *Player) Play(ctx context.Context, opts PlayOptions) error {
	_, err := p.play(ctx, opts)
	return err
}

// Next plays the sound after the cursor.
func (p *Player) Next(ctx context.Context) error {
	return p.Play(ctx, PlayOptions{Selector: Next()})
}

// Previous plays the sound before the cursor.
func (p *Player) Previous(ctx context.Context) error {
	return p.Play(ctx, PlayOptions{Selector: Previous()})
}

// First plays the first sound.
func (p *Player) First(ctx context.Context) error {
	return p.Play(ctx, PlayOptions{Selector: First()})
}

// Last plays the last sound.
func (p *Player) Last(ctx context.Context) error {
	return p.Play(ctx, PlayOptions{Selector: Last()})
}

func (p *Player) play(ctx context.Context, opts PlayOptions) (*Sound, error) {
	var calls callbackQueue

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	sel := opts.Selector
	target, _ := p.resolveTargetLocked(sel, false)
	if target == nil && sel.kind == selectNext && p.loopQueue && len(p.queue) > 0 {
		sel = First()
		target, _ = p.resolveTargetLocked(sel, false)
	}

	if p.active != nil && p.active != target {
		p.stopLocked(p.active, &calls)
	}
	if target == nil {
		p.mu.Unlock()
		calls.run()
		return nil, nil
	}

	p.resolveTargetLocked(sel, true)
	if target.state == StatePlaying {
		if opts.Offset == nil {
			p.mu.Unlock()
			calls.run()
			return target, nil
		}
		p.pauseLocked(target, &calls)
	}
	if opts.Offset != nil {
		target.playTimeOffset = max(*opts.Offset, 0)
	}

	p.intent++
	intent := p.intent
	p.playTarget = target
	op := p.loadLocked(target)
	p.mu.Unlock()
	calls.run()

	if err := op.wait(ctx); err != nil {
		return target, err
	}

	calls = nil
	p.mu.Lock()
	if p.closed || (p.intent != intent && p.playTarget != target) {
		p.mu.Unlock()
		zlog.Debug().Msgf("playback: discarded stale play of %s", target.id)
		return target, ErrSuperseded
	}
	if target.state == StatePlaying {
		// Started by another Play of the same sound.
		p.mu.Unlock()
		return target, nil
	}
	err := p.startLocked(target, &calls)
	p.mu.Unlock()
	calls.run()
	return target, err
}

// Pause pauses the playing sound, keeping its offset.
func (p *Player) Pause() {
	var calls callbackQueue

	p.mu.Lock()
	p.intent++
	p.playTarget = nil
	if p.active != nil {
		p.pauseLocked(p.active, &calls)
	}
	p.mu.Unlock()
	calls.run()
}

// Stop stops the playing (or paused current) sound and rewinds it.
func (p *Player) Stop() {
	var calls callbackQueue

	p.mu.Lock()
	p.intent++
	p.playTarget = nil
	if p.active != nil {
		p.stopLocked(p.active, &calls)
	} else if cur, _ := p.resolveTargetLocked(Current(), false); cur != nil && cur.state == StatePaused {
		p.stopLocked(cur, &calls)
	}
	p.mu.Unlock()
	calls.run()
}

// SetPosition seeks the playing sound to percent (0..100) of its duration.
// Does nothing when no sound is playing.
func (p *Player) SetPosition(ctx context.Context, percent float64) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidPercent
	}
	var calls callbackQueue

	p.mu.Lock()
	s := p.active
	if s == nil || s.state != StatePlaying {
		p.mu.Unlock()
		return nil
	}
	p.pauseLocked(s, &calls)
	offset := time.Duration(float64(s.duration) * percent / 100)
	id := s.id
	p.mu.Unlock()
	calls.run()

	return p.Play(ctx, PlayOptions{Selector: ByID(id), Offset: &offset})
}

// SetPositionInSeconds seeks the sound with id (or the current sound when id is nil).
// A sound that is not playing keeps the offset for its next Play.
func (p *Player) SetPositionInSeconds(ctx context.Context, position time.Duration, id *sound.ID) error {
	var calls callbackQueue

	sel := Current()
	if id != nil {
		sel = ByID(*id)
	}
	position = max(position, 0)

	p.mu.Lock()
	s, _ := p.resolveTargetLocked(sel, false)
	if s == nil {
		p.mu.Unlock()
		return nil
	}
	if s.state != StatePlaying {
		s.playTimeOffset = position
		p.mu.Unlock()
		return nil
	}
	p.pauseLocked(s, &calls)
	sid := s.id
	p.mu.Unlock()
	calls.run()

	return p.Play(ctx, PlayOptions{Selector: ByID(sid), Offset: &position})
}

// Close stops playback and cancels every pending pipeline and progress loop.
func (p *Player) Close() {
	var calls callbackQueue

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.intent++
	p.playTarget = nil
	if p.active != nil {
		p.stopLocked(p.active, &calls)
	}
	p.closed = true
	p.cancel()
	p.mu.Unlock()
	calls.run()
}

func (p *Player) startLocked(s *Sound, calls *callbackQueue) error {
	if s.buffer == nil {
		return errors.AssertionFailedf("sound %s started without a buffer", s.id)
	}

	p.sourceSeq++
	seq := p.sourceSeq
	src, err := p.audio.CreateSource(SourceOptions{
		Loop:    s.loop,
		OnEnded: func() { p.handleEnded(s, seq) },
	})
	if err != nil {
		return &PlatformError{Op: "create source", Err: err}
	}
	if err := src.SetBuffer(s.buffer); err != nil {
		p.destroySource(src)
		return &PlatformError{Op: "set buffer", Err: err}
	}
	s.startTime = p.audio.ClockTime()
	if err := p.audio.Connect(src); err != nil {
		p.destroySource(src)
		return &PlatformError{Op: "connect", Err: err}
	}
	if err := src.Start(s.playTimeOffset); err != nil {
		p.destroySource(src)
		return &PlatformError{Op: "start", Err: err}
	}

	resumed := s.state == StatePaused
	s.source = src
	s.sourceSeq = seq
	s.state = StatePlaying
	p.active = s

	offset := s.playTimeOffset
	if resumed {
		calls.addOffset(s.callbacks.OnResumed, offset)
		zlog.Debug().Msgf("playback: resumed %s at %v", s.id, offset)
	} else {
		calls.addOffset(s.callbacks.OnStarted, offset)
		zlog.Debug().Msgf("playback: started %s at %v", s.id, offset)
	}

	if s.callbacks.OnPlaying != nil {
		p.startProgressLocked(s, seq)
	}
	return nil
}

func (p *Player) pauseLocked(s *Sound, calls *callbackQueue) {
	if s.state != StatePlaying {
		return
	}
	offset := s.playTimeOffset + p.audio.ClockTime() - s.startTime
	if s.loop && s.duration > 0 {
		offset %= s.duration
	}
	s.playTimeOffset = offset
	p.teardownLocked(s)
	s.state = StatePaused
	calls.addOffset(s.callbacks.OnPaused, offset)
	zlog.Debug().Msgf("playback: paused %s at %v", s.id, offset)
}

func (p *Player) stopLocked(s *Sound, calls *callbackQueue) {
	if s.state == StateStopped {
		return
	}
	p.rewindLocked(s)
	calls.addOffset(s.callbacks.OnStopped, 0)
	zlog.Debug().Msgf("playback: stopped %s", s.id)
}

func (p *Player) rewindLocked(s *Sound) {
	s.playTimeOffset = 0
	p.teardownLocked(s)
	s.state = StateStopped
}

// teardownLocked destroys the source and cancels the progress loop.
func (p *Player) teardownLocked(s *Sound) {
	if s.progressCancel != nil {
		s.progressCancel()
		s.progressCancel = nil
	}
	if s.source != nil {
		p.destroySource(s.source)
		s.source = nil
	}
	s.sourceSeq = 0
	if p.active == s {
		p.active = nil
	}
}

func (p *Player) destroySource(src Source) {
	if err := p.audio.Destroy(src); err != nil {
		zlog.Warn().Err(err).Msg("playback: failed to destroy source")
	}
}

// handleEnded is invoked by the audio service when a source completes.
func (p *Player) handleEnded(s *Sound, seq uint64) {
	var calls callbackQueue

	p.mu.Lock()
	if p.closed || s.source == nil || s.sourceSeq != seq || s.state != StatePlaying {
		p.mu.Unlock()
		return
	}

	idx := p.indexOfLocked(s)
	if idx < 0 {
		// Detached by a reset that did not stop it.
		p.rewindLocked(s)
		p.mu.Unlock()
		calls.run()
		return
	}

	p.currentIndex = idx
	next, _ := p.resolveTargetLocked(Next(), false)
	willPlayNext := next != nil && p.config.playNextOnEnded()
	if cb := s.callbacks.OnEnded; cb != nil {
		calls.add(func() { cb(willPlayNext) })
	}
	p.rewindLocked(s)
	zlog.Debug().Msgf("playback: ended %s (playNext=%v)", s.id, willPlayNext)

	var follow *Selector
	switch {
	case willPlayNext:
		sel := Next()
		follow = &sel
	case next == nil && p.loopQueue:
		p.currentIndex = 0
		sel := Current()
		follow = &sel
	}
	p.mu.Unlock()
	calls.run()

	if follow == nil {
		return
	}
	target, err := p.play(p.ctx, PlayOptions{Selector: *follow})
	if err == nil || errors.Is(err, ErrSuperseded) || errors.Is(err, context.Canceled) {
		return
	}
	zlog.Error().Err(err).Msg("playback: failed to advance after end")
	if target != nil && target.callbacks.OnError != nil {
		target.callbacks.OnError(err)
	}
}

// callbackQueue collects callbacks under the lock and runs them after unlock.
type callbackQueue []func()

func (q *callbackQueue) add(f func()) {
	*q = append(*q, f)
}

func (q *callbackQueue) addOffset(cb func(time.Duration), offset time.Duration) {
	if cb == nil {
		return
	}
	q.add(func() { cb(offset) })
}

func (q callbackQueue) run() {
	for _, f := range q {
		f()
	}
}

package playback

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/osa030/soundqueue/internal/domain/sound"
)

// Callbacks are per-sound hooks. The player never invokes them while holding
// its lock, so they may call back into the player.
type Callbacks struct {
	OnLoading func(percent float64, total, loaded int64)
	OnPlaying func(percent float64, duration, playTime time.Duration)
	OnStarted func(offset time.Duration)
	OnPaused  func(offset time.Duration)
	OnStopped func(offset time.Duration)
	OnResumed func(offset time.Duration)
	OnEnded   func(willPlayNext bool)
	OnError   func(err error) // Failures of automatic transitions
}

// SoundAttributes describe a sound to enqueue.
type SoundAttributes struct {
	ID       sound.ID // Generated when zero
	Title    string
	Sources  []sound.Source
	Loop     *bool  // nil uses Config.LoopSong
	RawBytes []byte // Skips the fetch stage
	Buffer   Buffer // Skips fetch and decode
	Callbacks
}

// Sound is a queued playable item. All state is guarded by the owning player.
type Sound struct {
	mu *sync.RWMutex

	id        sound.ID
	title     string
	sources   []sound.Source
	loop      bool
	callbacks Callbacks

	// Loading pipeline
	url             string
	codec           string
	raw             []byte
	buffer          Buffer
	bufferedAt      time.Time
	duration        time.Duration
	buffering       bool
	decoding        bool
	loadingProgress float64
	pending         *loadOp
	epoch           uint64 // Bumped when the sound leaves the queue

	// Playback
	state            State
	startTime        time.Duration // Audio clock at segment start
	playTimeOffset   time.Duration // Played time before the current segment
	playTime         time.Duration
	playedPercentage float64
	source           Source
	sourceSeq        uint64 // Token of the current source; 0 when none
	progressCancel   context.CancelFunc
}

// Info is a point-in-time snapshot of a sound.
type Info struct {
	ID               sound.ID
	Title            string
	URL              string
	Codec            string
	State            State
	Pipeline         PipelineState
	Loop             bool
	Duration         time.Duration
	PlayTimeOffset   time.Duration
	PlayTime         time.Duration
	PlayedPercentage float64
	LoadingProgress  float64
	BufferedAt       time.Time
}

// ID returns the sound id.
func (s *Sound) ID() sound.ID {
	return s.id
}

// Title returns the display title.
func (s *Sound) Title() string {
	return s.title
}

// Sources returns a copy of the candidate sources.
func (s *Sound) Sources() []sound.Source {
	return slices.Clone(s.sources)
}

// State returns the playback state.
func (s *Sound) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsPlaying reports whether the sound owns a started source.
func (s *Sound) IsPlaying() bool {
	return s.State() == StatePlaying
}

// IsBuffering reports whether a fetch is in flight.
func (s *Sound) IsBuffering() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffering
}

// IsBuffered reports whether the decoded buffer is cached.
func (s *Sound) IsBuffered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffer != nil
}

// Duration returns the decoded duration, 0 before decode.
func (s *Sound) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration
}

// PlayTimeOffset returns the accumulated played time before the current segment.
func (s *Sound) PlayTimeOffset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playTimeOffset
}

// PipelineState returns the loading stage.
func (s *Sound) PipelineState() PipelineState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipelineStateLocked()
}

// Info returns a snapshot of the sound.
func (s *Sound) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}

func (s *Sound) infoLocked() Info {
	return Info{
		ID:               s.id,
		Title:            s.title,
		URL:              s.url,
		Codec:            s.codec,
		State:            s.state,
		Pipeline:         s.pipelineStateLocked(),
		Loop:             s.loop,
		Duration:         s.duration,
		PlayTimeOffset:   s.playTimeOffset,
		PlayTime:         s.playTime,
		PlayedPercentage: s.playedPercentage,
		LoadingProgress:  s.loadingProgress,
		BufferedAt:       s.bufferedAt,
	}
}

func (s *Sound) pipelineStateLocked() PipelineState {
	switch {
	case s.buffer != nil:
		return PipelineReady
	case s.buffering:
		return PipelineFetching
	case s.decoding, s.raw != nil:
		return PipelineDecoding
	default:
		return PipelineEmpty
	}
}

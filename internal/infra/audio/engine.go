// Package audio implements the playback AudioService on top of beep.
package audio

import (
	"bytes"
	"context"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/osa030/soundqueue/internal/app/playback"
	zlog "github.com/rs/zerolog/log"
)

// Output names.
const (
	OutputSpeaker  = "speaker"
	OutputHeadless = "headless"
)

// ErrUnsupported is returned for data in an unknown container.
var ErrUnsupported = errors.New("unsupported audio format")

// Config represents audio engine configuration.
type Config struct {
	Output          string        // "speaker" or "headless"
	SampleRate      int           // Output sample rate
	Buffer          time.Duration // Output buffer length
	ResampleQuality int           // beep.Resample quality, 1..64
}

// output drives the final streamer. lock and unlock guard every mutation of
// streamers the output is reading from.
type output interface {
	lock()
	unlock()
	close()
}

// Engine is a beep-backed AudioService. Every source plays through one mixer
// behind a shared volume stage.
type Engine struct {
	format  beep.Format
	quality int
	mixer   *beep.Mixer
	volume  *effects.Volume
	out     output
	start   time.Time

	closeOnce sync.Once
}

var _ playback.AudioService = (*Engine)(nil)

// New creates a new engine and starts its output.
func New(cfg Config) (*Engine, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 100 * time.Millisecond
	}
	if cfg.ResampleQuality <= 0 {
		cfg.ResampleQuality = 4
	}

	e := &Engine{
		format: beep.Format{
			SampleRate:  beep.SampleRate(cfg.SampleRate),
			NumChannels: 2,
			Precision:   2,
		},
		quality: cfg.ResampleQuality,
		mixer:   &beep.Mixer{},
	}
	e.volume = &effects.Volume{Streamer: keepAlive{e.mixer}, Base: 2}

	var err error
	switch cfg.Output {
	case OutputSpeaker, "":
		e.out, err = newSpeakerOutput(e.format.SampleRate, cfg.Buffer, e.volume)
	case OutputHeadless:
		e.out = newHeadlessOutput(e.format.SampleRate, cfg.Buffer, e.volume)
	default:
		err = errors.Newf("unknown audio output %q", cfg.Output)
	}
	if err != nil {
		return nil, err
	}
	e.start = time.Now()

	zlog.Debug().Msgf("audio: %s output at %d Hz", cfg.Output, cfg.SampleRate)
	return e, nil
}

// Buffer is a decoded sound resampled to the engine rate.
type Buffer struct {
	buf *beep.Buffer
	d   time.Duration
}

// Duration returns the buffer length.
func (b *Buffer) Duration() time.Duration {
	return b.d
}

// Decode sniffs the container, decodes it and resamples it into a Buffer.
func (e *Engine) Decode(ctx context.Context, data []byte) (playback.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	streamer, format, err := decode(data)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != e.format.SampleRate {
		s = beep.Resample(e.quality, format.SampleRate, e.format.SampleRate, streamer)
	}

	buf := beep.NewBuffer(e.format)
	buf.Append(s)
	if err := streamer.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to decode audio stream")
	}
	if buf.Len() == 0 {
		return nil, errors.New("decoded audio is empty")
	}

	return &Buffer{buf: buf, d: e.format.SampleRate.D(buf.Len())}, nil
}

func decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	rc := io.NopCloser(bytes.NewReader(data))
	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	switch Sniff(data) {
	case "wav":
		s, f, err = wav.Decode(rc)
	case "ogg":
		s, f, err = vorbis.Decode(rc)
	case "mp3":
		s, f, err = mp3.Decode(rc)
	default:
		return nil, beep.Format{}, ErrUnsupported
	}
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "failed to decode audio")
	}
	return s, f, nil
}

// Sniff identifies the container of data: "wav", "ogg", "mp3", or "".
func Sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return "ogg"
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	default:
		return ""
	}
}

// Supports reports whether the engine can decode codec.
func (e *Engine) Supports(codec string) bool {
	switch codec {
	case "mp3", "wav", "ogg":
		return true
	default:
		return false
	}
}

// source is a one-shot playable source.
type source struct {
	engine    *Engine
	loop      bool
	onEnded   func()
	buffer    *Buffer
	connected bool
	ctrl      *beep.Ctrl
	done      atomic.Bool // Set once by either natural end or Destroy
}

// CreateSource creates a one-shot source.
func (e *Engine) CreateSource(opts playback.SourceOptions) (playback.Source, error) {
	return &source{engine: e, loop: opts.Loop, onEnded: opts.OnEnded}, nil
}

func (s *source) SetBuffer(b playback.Buffer) error {
	buf, ok := b.(*Buffer)
	if !ok {
		return errors.Newf("unexpected buffer type %T", b)
	}
	s.buffer = buf
	return nil
}

// Connect attaches src to the engine mixer.
func (e *Engine) Connect(src playback.Source) error {
	s, err := e.own(src)
	if err != nil {
		return err
	}
	s.connected = true
	return nil
}

// Start begins playback at offset.
func (s *source) Start(offset time.Duration) error {
	switch {
	case !s.connected:
		return errors.New("source is not connected")
	case s.buffer == nil:
		return errors.New("source has no buffer")
	case s.ctrl != nil:
		return errors.New("source already started")
	}

	e := s.engine
	n := s.buffer.buf.Len()
	from := min(max(e.format.SampleRate.N(offset), 0), n)

	var stream beep.Streamer
	if s.loop {
		stream = beep.Seq(
			s.buffer.buf.Streamer(from, n),
			beep.Loop(-1, s.buffer.buf.Streamer(0, n)),
		)
	} else {
		stream = beep.Seq(
			s.buffer.buf.Streamer(from, n),
			beep.Callback(s.ended),
		)
	}
	s.ctrl = &beep.Ctrl{Streamer: stream}

	e.out.lock()
	e.mixer.Add(s.ctrl)
	e.out.unlock()
	return nil
}

// ended runs on the output goroutine with the output locked.
func (s *source) ended() {
	if s.done.CompareAndSwap(false, true) && s.onEnded != nil {
		go s.onEnded()
	}
}

// Destroy stops and releases src. Destroying twice is a no-op.
func (e *Engine) Destroy(src playback.Source) error {
	s, err := e.own(src)
	if err != nil {
		return err
	}
	if !s.done.CompareAndSwap(false, true) || s.ctrl == nil {
		return nil
	}
	e.out.lock()
	s.ctrl.Streamer = nil
	e.out.unlock()
	return nil
}

func (e *Engine) own(src playback.Source) (*source, error) {
	s, ok := src.(*source)
	if !ok || s.engine != e {
		return nil, errors.Newf("source %T does not belong to this engine", src)
	}
	return s, nil
}

// SetGain sets the output gain, 0..1.
func (e *Engine) SetGain(gain float64) {
	e.out.lock()
	defer e.out.unlock()
	if gain <= 0 {
		e.volume.Silent = true
		e.volume.Volume = 0
		return
	}
	e.volume.Silent = false
	e.volume.Volume = math.Log2(math.Min(gain, 1))
}

// ClockTime returns the time since the output started.
func (e *Engine) ClockTime() time.Duration {
	return time.Since(e.start)
}

// Close stops the output.
func (e *Engine) Close() {
	e.closeOnce.Do(e.out.close)
}

// keepAlive pads the mixer with silence so the output never drops it.
type keepAlive struct {
	s beep.Streamer
}

func (k keepAlive) Stream(samples [][2]float64) (int, bool) {
	n, _ := k.s.Stream(samples)
	clear(samples[n:])
	return len(samples), true
}

func (k keepAlive) Err() error {
	return k.s.Err()
}

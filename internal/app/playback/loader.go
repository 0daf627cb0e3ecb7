package playback

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// loadOp is the single in-flight pipeline of a sound. Every caller that needs
// the sound loaded while it runs waits on the same op.
type loadOp struct {
	done  chan struct{}
	err   error
	epoch uint64
}

func newLoadOp(epoch uint64) *loadOp {
	return &loadOp{done: make(chan struct{}), epoch: epoch}
}

func (op *loadOp) finish(err error) {
	op.err = err
	close(op.done)
}

func (op *loadOp) wait(ctx context.Context) error {
	select {
	case <-op.done:
		return op.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Preload runs the loading pipeline of the selected sound without playing it.
func (p *Player) Preload(ctx context.Context, sel Selector) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	s, _ := p.resolveTargetLocked(sel, false)
	if s == nil {
		p.mu.Unlock()
		return nil
	}
	op := p.loadLocked(s)
	p.mu.Unlock()

	return op.wait(ctx)
}

// loadLocked returns an op that completes when s holds a decoded buffer.
func (p *Player) loadLocked(s *Sound) *loadOp {
	if s.pending != nil {
		return s.pending
	}
	op := newLoadOp(s.epoch)
	if s.buffer != nil {
		op.finish(nil)
		return op
	}

	fetch := s.raw == nil
	if fetch {
		if s.url == "" {
			url, codec, err := p.resolveSource(s.sources)
			if err != nil {
				op.finish(err)
				return op
			}
			s.url, s.codec = url, codec
		}
		s.buffering = true
	} else {
		s.decoding = true
	}
	s.pending = op

	go p.runPipeline(s, op, fetch)
	return op
}

func (p *Player) runPipeline(s *Sound, op *loadOp, fetch bool) {
	ctx := p.ctx

	if fetch {
		p.mu.RLock()
		url := s.url
		onLoading := s.callbacks.OnLoading
		p.mu.RUnlock()

		zlog.Debug().Msgf("playback: fetching %s", url)
		data, err := p.transport.Fetch(ctx, url, func(percent float64, total, loaded int64) {
			p.mu.Lock()
			stale := s.epoch != op.epoch
			if !stale {
				s.loadingProgress = percent
			}
			p.mu.Unlock()
			if !stale && onLoading != nil {
				onLoading(percent, total, loaded)
			}
		})

		p.mu.Lock()
		if s.epoch != op.epoch {
			p.discardLocked(s, op)
			p.mu.Unlock()
			op.finish(ErrSuperseded)
			return
		}
		s.buffering = false
		if err != nil {
			s.pending = nil
			p.mu.Unlock()
			zlog.Warn().Err(err).Msgf("playback: failed to fetch %s", url)
			op.finish(&NetworkError{URL: url, StatusCode: statusCodeOf(err), Err: err})
			return
		}
		s.raw = data
		s.decoding = true
		p.mu.Unlock()
	}

	p.mu.RLock()
	raw := s.raw
	p.mu.RUnlock()

	buf, err := p.audio.Decode(ctx, raw)

	p.mu.Lock()
	if s.epoch != op.epoch {
		p.discardLocked(s, op)
		p.mu.Unlock()
		op.finish(ErrSuperseded)
		return
	}
	s.decoding = false
	s.pending = nil
	if err != nil {
		p.mu.Unlock()
		zlog.Warn().Err(err).Msgf("playback: failed to decode %s", s.id)
		op.finish(&DecodeError{Err: err})
		return
	}
	s.buffer = buf
	s.bufferedAt = time.Now()
	s.duration = buf.Duration()
	p.mu.Unlock()

	zlog.Debug().Msgf("playback: buffered %s (%v)", s.id, buf.Duration())
	op.finish(nil)
}

func (p *Player) discardLocked(s *Sound, op *loadOp) {
	if s.pending == op {
		s.pending = nil
		s.buffering = false
		s.decoding = false
	}
}

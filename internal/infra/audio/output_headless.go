package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

// headlessOutput drains the streamer in real time without a sound device.
type headlessOutput struct {
	mu       sync.Mutex
	streamer beep.Streamer
	samples  [][2]float64
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func newHeadlessOutput(sr beep.SampleRate, buffer time.Duration, s beep.Streamer) *headlessOutput {
	h := &headlessOutput{
		streamer: s,
		samples:  make([][2]float64, max(sr.N(buffer), 1)),
		interval: buffer,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *headlessOutput) run() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.mu.Lock()
			h.streamer.Stream(h.samples)
			h.mu.Unlock()
		}
	}
}

func (h *headlessOutput) lock()   { h.mu.Lock() }
func (h *headlessOutput) unlock() { h.mu.Unlock() }

func (h *headlessOutput) close() {
	close(h.stop)
	<-h.done
}

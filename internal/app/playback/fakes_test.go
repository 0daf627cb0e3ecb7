package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/osa030/soundqueue/internal/domain/sound"
)

type fakeBuffer struct {
	d time.Duration
}

func (b fakeBuffer) Duration() time.Duration { return b.d }

type fakeSource struct {
	opts      SourceOptions
	buffer    Buffer
	offset    time.Duration
	started   bool
	destroyed bool
}

func (s *fakeSource) SetBuffer(b Buffer) error {
	s.buffer = b
	return nil
}

func (s *fakeSource) Start(offset time.Duration) error {
	s.offset = offset
	s.started = true
	return nil
}

// end simulates the source reaching its natural end.
func (s *fakeSource) end() {
	s.opts.OnEnded()
}

type fakeAudio struct {
	mu        sync.Mutex
	clock     time.Duration
	duration  time.Duration
	gains     []float64
	sources   []*fakeSource
	decodes   int
	decodeErr error
	startErr  error
	supported map[string]bool // nil supports everything
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{duration: 10 * time.Second}
}

func (a *fakeAudio) Decode(_ context.Context, data []byte) (Buffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decodes++
	if a.decodeErr != nil {
		return nil, a.decodeErr
	}
	return fakeBuffer{d: a.duration}, nil
}

func (a *fakeAudio) Supports(codec string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.supported == nil {
		return true
	}
	return a.supported[codec]
}

func (a *fakeAudio) CreateSource(opts SourceOptions) (Source, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startErr != nil {
		return nil, a.startErr
	}
	src := &fakeSource{opts: opts}
	a.sources = append(a.sources, src)
	return src, nil
}

func (a *fakeAudio) Connect(Source) error { return nil }

func (a *fakeAudio) Destroy(src Source) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	src.(*fakeSource).destroyed = true
	return nil
}

func (a *fakeAudio) SetGain(gain float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gains = append(a.gains, gain)
}

func (a *fakeAudio) ClockTime() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clock
}

func (a *fakeAudio) advance(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clock += d
}

func (a *fakeAudio) lastSource() *fakeSource {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.sources) == 0 {
		return nil
	}
	return a.sources[len(a.sources)-1]
}

func (a *fakeAudio) sourceCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sources)
}

func (a *fakeAudio) decodeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decodes
}

func (a *fakeAudio) lastGain() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gains[len(a.gains)-1]
}

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

type fakeTransport struct {
	mu      sync.Mutex
	fetches map[string]int
	err     error
	block   chan struct{} // Fetch waits until closed when set
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{fetches: make(map[string]int)}
}

func (t *fakeTransport) Fetch(ctx context.Context, url string, onProgress ProgressFunc) ([]byte, error) {
	t.mu.Lock()
	t.fetches[url]++
	block := t.block
	err := t.err
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(100, 4, 4)
	}
	return []byte("data"), nil
}

func (t *fakeTransport) fetchCount(url string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fetches[url]
}

func (t *fakeTransport) totalFetches() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.fetches {
		n += c
	}
	return n
}

type fakeStore struct {
	mu     sync.Mutex
	volume int
	ok     bool
	saves  []int
}

func (s *fakeStore) LoadVolume() (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume, s.ok, nil
}

func (s *fakeStore) SaveVolume(v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, v)
	return nil
}

// recorder collects callback invocations in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) callbacks(name string) Callbacks {
	return Callbacks{
		OnStarted: func(o time.Duration) { r.add("%s started %v", name, o) },
		OnPaused:  func(o time.Duration) { r.add("%s paused %v", name, o) },
		OnStopped: func(o time.Duration) { r.add("%s stopped %v", name, o) },
		OnResumed: func(o time.Duration) { r.add("%s resumed %v", name, o) },
		OnEnded:   func(next bool) { r.add("%s ended %v", name, next) },
		OnError:   func(err error) { r.add("%s error %v", name, err) },
	}
}

func attrs(id string, cb Callbacks) SoundAttributes {
	return SoundAttributes{
		ID:        sound.StringID(id),
		Sources:   []sound.Source{sound.FromURL("http://example.com/" + id + ".mp3")},
		Callbacks: cb,
	}
}

func urlOf(id string) string {
	return "http://example.com/" + id + ".mp3"
}

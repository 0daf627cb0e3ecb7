package playback

import (
	"context"
	"time"
)

// Buffer is a decoded audio buffer owned by the AudioService.
// It can be bound to any number of sources over its lifetime.
type Buffer interface {
	Duration() time.Duration
}

// SourceOptions configures a one-shot playable source.
type SourceOptions struct {
	Loop    bool
	OnEnded func() // Called once when playback completes without an explicit destroy
}

// Source is a one-shot playable source. It cannot be restarted once stopped.
type Source interface {
	SetBuffer(b Buffer) error
	Start(offset time.Duration) error
}

// AudioService owns the output graph (mixer, gain, destination).
type AudioService interface {
	Decode(ctx context.Context, data []byte) (Buffer, error)
	Supports(codec string) bool
	CreateSource(opts SourceOptions) (Source, error)
	Connect(src Source) error
	// Destroy stops and releases src. Destroying twice is a no-op.
	Destroy(src Source) error
	// SetGain sets the output gain, 0..1.
	SetGain(gain float64)
	// ClockTime returns the monotonic audio clock.
	ClockTime() time.Duration
}

// ProgressFunc receives transport progress.
// percent is 0 while the total size is unknown and 100 once the body is read.
type ProgressFunc func(percent float64, total, loaded int64)

// TransportService retrieves raw sound bytes.
type TransportService interface {
	Fetch(ctx context.Context, url string, onProgress ProgressFunc) ([]byte, error)
}

// VolumeStore persists the player volume across restarts.
type VolumeStore interface {
	LoadVolume() (volume int, ok bool, err error)
	SaveVolume(volume int) error
}

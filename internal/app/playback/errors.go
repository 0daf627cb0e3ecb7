package playback

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrNoURL          = errors.New("sound has no url")
	ErrSuperseded     = errors.New("request superseded by a newer playback command")
	ErrDuplicateID    = errors.New("sound id already in queue")
	ErrClosed         = errors.New("player closed")
	ErrInvalidPercent = errors.New("position percent must be between 0 and 100")
)

// NetworkError is returned when the transport fails to retrieve a sound.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when the failure happened below HTTP
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network error %d fetching %s: %v", e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError is returned when the audio service rejects the fetched bytes.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PlatformError is returned when the audio service fails to create or start a source.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("audio platform error (%s): %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// statusCoder is implemented by transport errors that carry a status code.
type statusCoder interface {
	StatusCode() int
}

func statusCodeOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

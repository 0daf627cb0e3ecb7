//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
)

// SpeakerAvailable indicates whether device output is supported in this build.
// Device output requires cgo on Linux; use the headless output instead.
const SpeakerAvailable = false

func newSpeakerOutput(beep.SampleRate, time.Duration, beep.Streamer) (output, error) {
	return nil, errors.New("speaker output requires cgo; use the headless output")
}

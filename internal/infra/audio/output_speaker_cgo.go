//go:build (linux && cgo) || windows || darwin

package audio

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// SpeakerAvailable indicates whether device output is supported in this build.
const SpeakerAvailable = true

type speakerOutput struct{}

func newSpeakerOutput(sr beep.SampleRate, buffer time.Duration, s beep.Streamer) (output, error) {
	if err := speaker.Init(sr, sr.N(buffer)); err != nil {
		return nil, errors.Wrap(err, "failed to initialize speaker")
	}
	speaker.Play(s)
	return speakerOutput{}, nil
}

func (speakerOutput) lock()   { speaker.Lock() }
func (speakerOutput) unlock() { speaker.Unlock() }
func (speakerOutput) close()  { speaker.Close() }

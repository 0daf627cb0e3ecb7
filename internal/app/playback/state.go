// Package playback provides the sound queue and its playback state machine.
package playback

// State represents the playback state of a sound.
type State int

const (
	StateStopped State = iota // Not playing, offset at 0 (initial)
	StatePlaying              // Source started
	StatePaused               // Source torn down, offset kept
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// PipelineState represents the loading stage of a sound.
type PipelineState int

const (
	PipelineEmpty    PipelineState = iota // Neither raw bytes nor decoded buffer
	PipelineFetching                      // Transport fetch in flight
	PipelineDecoding                      // Decode in flight
	PipelineReady                         // Decoded buffer cached
)

// String returns the string representation of the pipeline state.
func (s PipelineState) String() string {
	switch s {
	case PipelineEmpty:
		return "empty"
	case PipelineFetching:
		return "fetching"
	case PipelineDecoding:
		return "decoding"
	case PipelineReady:
		return "ready"
	default:
		return "unknown"
	}
}

package notification

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/osa030/soundqueue/internal/domain/sound"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventType represents a sound lifecycle event type.
type EventType int

const (
	EventLoading EventType = iota // Fetch progress
	EventPlaying                  // Progress tick
	EventStarted                  // Started from the beginning or a seek offset
	EventPaused                   // Paused, offset kept
	EventResumed                  // Resumed from a pause
	EventStopped                  // Stopped explicitly
	EventEnded                    // Reached its natural end
	EventError                    // Automatic transition failed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventLoading:
		return "loading"
	case EventPlaying:
		return "playing"
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventStopped:
		return "stopped"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event represents a sound lifecycle event.
type Event struct {
	Type         EventType
	SoundID      sound.ID
	Offset       time.Duration // started/paused/resumed/stopped
	Percent      float64       // loading/playing
	Duration     time.Duration // playing
	PlayTime     time.Duration // playing
	Total        int64         // loading
	Loaded       int64         // loading
	WillPlayNext bool          // ended
	Err          string        // error
}

// ToStruct converts the event into its wire form.
func (e Event) ToStruct(sequenceNo uint64) (*structpb.Struct, error) {
	fields := map[string]any{
		"sequence_no": float64(sequenceNo),
		"type":        e.Type.String(),
		"sound_id":    e.SoundID.Value(),
	}
	switch e.Type {
	case EventLoading:
		fields["percent"] = e.Percent
		fields["total"] = float64(e.Total)
		fields["loaded"] = float64(e.Loaded)
	case EventPlaying:
		fields["percent"] = e.Percent
		fields["duration_sec"] = e.Duration.Seconds()
		fields["play_time_sec"] = e.PlayTime.Seconds()
	case EventEnded:
		fields["will_play_next"] = e.WillPlayNext
	case EventError:
		fields["error"] = e.Err
	default:
		fields["offset_sec"] = e.Offset.Seconds()
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode event")
	}
	return st, nil
}

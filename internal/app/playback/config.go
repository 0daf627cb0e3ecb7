package playback

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// DefaultVolume is used when no volume is configured or restored.
const DefaultVolume = 80

// Config holds player configuration.
// Pointer fields distinguish "unset" from an explicit zero value.
type Config struct {
	Volume             *int          `default:"80" validate:"required,gte=0,lte=100"`
	LoopQueue          bool          // Wrap to the first item after the last one ends
	LoopSong           bool          // Default per-sound loop flag
	SoundsBaseURL      string        // Prefixed to relative source URLs
	ProgressInterval   time.Duration `default:"1s" validate:"gt=0"`
	PlayNextOnEnded    *bool         `default:"true" validate:"required"`
	StopOnReset        *bool         `default:"true" validate:"required"`
	VisibilityAutoMute bool          // Mute while hidden
	PersistVolume      bool          // Save and restore the volume through a VolumeStore
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	cfg, _ := Config{}.withDefaults()
	return cfg
}

func (c Config) withDefaults() (Config, error) {
	if err := defaults.Set(&c); err != nil {
		return c, errors.Wrap(err, "failed to set player defaults")
	}
	if err := validator.New().Struct(c); err != nil {
		return c, errors.Wrap(err, "invalid player config")
	}
	return c, nil
}

func (c Config) playNextOnEnded() bool {
	return c.PlayNextOnEnded != nil && *c.PlayNextOnEnded
}

func (c Config) stopOnReset() bool {
	return c.StopOnReset != nil && *c.StopOnReset
}

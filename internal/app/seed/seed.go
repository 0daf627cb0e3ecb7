// Package seed enqueues playlist entries, resolving Spotify references on the way.
package seed

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/osa030/soundqueue/internal/app/playback"
	"github.com/osa030/soundqueue/internal/domain/playlist"
	"github.com/osa030/soundqueue/internal/domain/sound"
	"github.com/osa030/soundqueue/internal/infra/spotify"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Queue is the part of the player the seeder needs.
type Queue interface {
	AddSoundsToQueue(attrs []playback.SoundAttributes, placement playback.Placement) ([]*playback.Sound, error)
}

// Resolver turns Spotify references into preview tracks.
type Resolver interface {
	GetPreviewTrack(ctx context.Context, ref string) (*spotify.Track, error)
	GetPlaylistTracks(ctx context.Context, ref string) ([]spotify.Track, error)
}

// CallbackFunc builds the callbacks of a sound from its id.
type CallbackFunc func(id sound.ID) playback.Callbacks

// Seeder enqueues playlists.
type Seeder struct {
	queue     Queue
	resolver  Resolver // nil disables Spotify entries
	callbacks CallbackFunc
}

// New creates a new seeder. resolver and callbacks may be nil.
func New(queue Queue, resolver Resolver, callbacks CallbackFunc) *Seeder {
	return &Seeder{queue: queue, resolver: resolver, callbacks: callbacks}
}

// Seed enqueues every entry of p and returns the number of sounds added.
// Entries that cannot be resolved or enqueued are logged and skipped.
func (s *Seeder) Seed(ctx context.Context, p *playlist.Playlist) (int, error) {
	added := 0
	for i, e := range p.Entries {
		if err := ctx.Err(); err != nil {
			return added, err
		}

		attrs, err := s.expand(ctx, e)
		if err != nil {
			zlog.Warn().Err(err).Msgf("seed: skipping entry %d", i)
			continue
		}
		for _, a := range attrs {
			if _, err := s.Enqueue(a, playback.PlacementAppend); err != nil {
				zlog.Warn().Err(err).Msgf("seed: failed to enqueue entry %d", i)
				continue
			}
			added++
		}
	}

	zlog.Info().Msgf("seed: queued %d sounds from playlist %q", added, p.Name)
	return added, nil
}

// Add resolves one entry and enqueues its sounds at placement, keeping their order.
// Nothing is enqueued when any of the sounds is rejected.
func (s *Seeder) Add(ctx context.Context, e playlist.Entry, placement playback.Placement) ([]sound.ID, error) {
	attrs, err := s.expand(ctx, e)
	if err != nil {
		return nil, err
	}
	attrs = lo.Map(attrs, func(a playback.SoundAttributes, _ int) playback.SoundAttributes { return s.bind(a) })
	if _, err := s.queue.AddSoundsToQueue(attrs, placement); err != nil {
		return nil, err
	}
	return lo.Map(attrs, func(a playback.SoundAttributes, _ int) sound.ID { return a.ID }), nil
}

// Enqueue adds attrs with callbacks bound to its id, generating the id when zero.
func (s *Seeder) Enqueue(attrs playback.SoundAttributes, placement playback.Placement) (sound.ID, error) {
	attrs = s.bind(attrs)
	if _, err := s.queue.AddSoundsToQueue([]playback.SoundAttributes{attrs}, placement); err != nil {
		return sound.ID{}, err
	}
	return attrs.ID, nil
}

func (s *Seeder) bind(attrs playback.SoundAttributes) playback.SoundAttributes {
	if attrs.ID.IsZero() {
		attrs.ID = sound.NewID()
	}
	if s.callbacks != nil {
		attrs.Callbacks = s.callbacks(attrs.ID)
	}
	return attrs
}

func (s *Seeder) expand(ctx context.Context, e playlist.Entry) ([]playback.SoundAttributes, error) {
	if !e.IsSpotify() {
		return []playback.SoundAttributes{{ID: e.ID, Title: e.Title, Sources: e.Sources, Loop: e.Loop}}, nil
	}
	if s.resolver == nil {
		return nil, errors.Newf("spotify is not configured for %s", e.Spotify)
	}

	if spotify.IsPlaylistRef(e.Spotify) {
		tracks, err := s.resolver.GetPlaylistTracks(ctx, e.Spotify)
		if err != nil {
			return nil, err
		}
		out := make([]playback.SoundAttributes, 0, len(tracks))
		for _, t := range tracks {
			out = append(out, trackAttributes(sound.ID{}, "", e.Loop, t))
		}
		return out, nil
	}

	t, err := s.resolver.GetPreviewTrack(ctx, e.Spotify)
	if err != nil {
		return nil, err
	}
	return []playback.SoundAttributes{trackAttributes(e.ID, e.Title, e.Loop, *t)}, nil
}

func trackAttributes(id sound.ID, title string, loop *bool, t spotify.Track) playback.SoundAttributes {
	if id.IsZero() {
		id = sound.StringID("spotify:track:" + t.ID)
	}
	if title == "" {
		title = t.Title
	}
	return playback.SoundAttributes{
		ID:      id,
		Title:   title,
		Sources: []sound.Source{{URL: t.PreviewURL, Codec: "mp3"}},
		Loop:    loop,
	}
}

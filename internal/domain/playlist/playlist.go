// Package playlist provides the playlist file that seeds the sound queue.
package playlist

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	"github.com/osa030/soundqueue/internal/domain/sound"
	"gopkg.in/yaml.v3"
)

// Playlist is an ordered list of sounds to enqueue at startup.
type Playlist struct {
	Name    string
	Entries []Entry
}

// Entry is one playlist item. Exactly one of Sources and Spotify is set.
type Entry struct {
	ID      sound.ID // Zero when the queue should generate one
	Title   string
	Sources []sound.Source
	Loop    *bool
	Spotify string // Spotify track or playlist reference
}

// IsSpotify reports whether the entry must be resolved through Spotify.
func (e Entry) IsSpotify() bool {
	return e.Spotify != ""
}

// rawEntry is the loosely typed YAML form of an entry.
type rawEntry struct {
	ID      any    `mapstructure:"id"`
	Title   string `mapstructure:"title"`
	URL     string `mapstructure:"url"`
	Sources any    `mapstructure:"sources"`
	Loop    *bool  `mapstructure:"loop"`
	Spotify string `mapstructure:"spotify"`
}

type document struct {
	Name   string `yaml:"name"`
	Sounds []any  `yaml:"sounds"`
}

// Load loads a playlist from a YAML file.
func Load(path string) (*Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read playlist file")
	}
	return Parse(data)
}

// Parse parses a playlist from YAML bytes.
// A sound may be a bare URL string or a mapping with id, title, url, sources, loop and spotify keys.
func Parse(data []byte) (*Playlist, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse playlist file")
	}

	p := &Playlist{Name: doc.Name, Entries: make([]Entry, 0, len(doc.Sounds))}
	seen := make(map[sound.ID]struct{})
	for i, raw := range doc.Sounds {
		e, err := ParseEntry(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "sound %d", i)
		}
		if !e.ID.IsZero() {
			if _, dup := seen[e.ID]; dup {
				return nil, errors.Newf("sound %d: duplicate id %s", i, e.ID)
			}
			seen[e.ID] = struct{}{}
		}
		p.Entries = append(p.Entries, e)
	}
	return p, nil
}

// ParseEntry decodes one loosely typed entry: a bare URL string or a key/value mapping.
func ParseEntry(raw any) (Entry, error) {
	if u, ok := raw.(string); ok {
		return Entry{Sources: []sound.Source{sound.FromURL(u)}}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Entry{}, errors.Newf("unsupported entry type %T", raw)
	}

	var re rawEntry
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &re,
		ErrorUnused: true,
	})
	if err != nil {
		return Entry{}, errors.Wrap(err, "failed to create decoder")
	}
	if err := dec.Decode(m); err != nil {
		return Entry{}, errors.Wrap(err, "invalid entry")
	}

	id, err := sound.ParseID(re.ID)
	if err != nil {
		return Entry{}, err
	}
	sources, err := sound.ParseSources(re.Sources)
	if err != nil {
		return Entry{}, err
	}
	if re.URL != "" {
		sources = append([]sound.Source{sound.FromURL(re.URL)}, sources...)
	}

	switch {
	case re.Spotify != "" && len(sources) > 0:
		return Entry{}, errors.New("entry has both spotify and sources")
	case re.Spotify == "" && len(sources) == 0:
		return Entry{}, errors.New("entry has no sources")
	}

	return Entry{
		ID:      id,
		Title:   re.Title,
		Sources: sources,
		Loop:    re.Loop,
		Spotify: re.Spotify,
	}, nil
}

// IDs returns the ids of entries that carry one.
func (p *Playlist) IDs() []sound.ID {
	ids := make([]sound.ID, 0, len(p.Entries))
	for _, e := range p.Entries {
		if !e.ID.IsZero() {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

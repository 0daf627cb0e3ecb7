package sound

import (
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
)

// Source is one candidate location of a sound.
type Source struct {
	URL       string `mapstructure:"url" yaml:"url"`
	Codec     string `mapstructure:"codec" yaml:"codec"`
	Preferred bool   `mapstructure:"preferred" yaml:"preferred"`
}

// ParseSources decodes a source list given as a single URL string, a single
// source object, or a list mixing both.
func ParseSources(raw any) ([]Source, error) {
	switch x := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []Source{FromURL(x)}, nil
	case Source:
		return []Source{x}, nil
	case []Source:
		return x, nil
	case []string:
		sources := make([]Source, 0, len(x))
		for _, u := range x {
			sources = append(sources, FromURL(u))
		}
		return sources, nil
	case map[string]any:
		s, err := decodeSource(x)
		if err != nil {
			return nil, err
		}
		return []Source{s}, nil
	case []any:
		sources := make([]Source, 0, len(x))
		for i, item := range x {
			parsed, err := ParseSources(item)
			if err != nil {
				return nil, errors.Wrapf(err, "source %d", i)
			}
			sources = append(sources, parsed...)
		}
		return sources, nil
	default:
		return nil, errors.Newf("unsupported source type %T", raw)
	}
}

// FromURL builds a source from a bare URL, inferring the codec from its extension.
func FromURL(u string) Source {
	return Source{URL: u, Codec: CodecFromURL(u)}
}

// CodecFromURL infers a codec name from the file extension of u.
// It returns an empty string when the extension is unknown.
func CodecFromURL(u string) string {
	p := u
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".mp3":
		return "mp3"
	case ".ogg", ".oga":
		return "ogg"
	case ".wav", ".wave":
		return "wav"
	case ".flac":
		return "flac"
	default:
		return ""
	}
}

// IsAbsoluteURL reports whether u carries a scheme and so must not be
// prefixed with a base URL.
func IsAbsoluteURL(u string) bool {
	return strings.Contains(u, "://") || strings.HasPrefix(u, "file:")
}

func decodeSource(m map[string]any) (Source, error) {
	normalized := make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case "isPreferred", "is_preferred":
			normalized["preferred"] = v
		default:
			normalized[k] = v
		}
	}

	var s Source
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Source{}, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(normalized); err != nil {
		return Source{}, errors.Wrap(err, "failed to decode source")
	}
	if s.URL == "" {
		return Source{}, errors.New("source url is required")
	}
	if s.Codec == "" {
		s.Codec = CodecFromURL(s.URL)
	}
	s.Codec = strings.ToLower(s.Codec)
	return s, nil
}

package playback

import (
	"strings"

	"github.com/osa030/soundqueue/internal/domain/sound"
	"github.com/samber/lo"
)

// resolveSource picks the URL and codec to fetch.
// Preferred entries win; within the winning group the first entry whose codec
// the audio service supports is used, falling back to the group's first entry.
func (p *Player) resolveSource(sources []sound.Source) (string, string, error) {
	candidates := lo.Filter(sources, func(src sound.Source, _ int) bool { return src.URL != "" })
	if len(candidates) == 0 {
		return "", "", ErrNoURL
	}

	group := candidates
	preferred := lo.Filter(candidates, func(src sound.Source, _ int) bool { return src.Preferred })
	if len(preferred) > 0 {
		group = preferred
	}

	chosen := group[0]
	for _, src := range group {
		codec := src.Codec
		if codec == "" {
			codec = sound.CodecFromURL(src.URL)
		}
		if codec != "" && p.audio.Supports(codec) {
			chosen = src
			break
		}
	}

	codec := chosen.Codec
	if codec == "" {
		codec = sound.CodecFromURL(chosen.URL)
	}
	return p.absoluteURL(chosen.URL), codec, nil
}

func (p *Player) absoluteURL(u string) string {
	base := p.config.SoundsBaseURL
	if base == "" || sound.IsAbsoluteURL(u) {
		return u
	}
	if strings.HasSuffix(base, "/") && strings.HasPrefix(u, "/") {
		return base + strings.TrimPrefix(u, "/")
	}
	return base + u
}

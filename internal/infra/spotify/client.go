// Package spotify resolves Spotify track references into playable preview sources.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNoPreview is returned for tracks without a preview clip.
var ErrNoPreview = errors.New("track has no preview")

// Client is a Spotify API client authenticated with client credentials.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// Track is the playable subset of a Spotify track.
type Track struct {
	ID         string
	Title      string
	Artists    []string
	Duration   time.Duration
	PreviewURL string
	URL        string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return newClient(cc.Client(ctx), cfg.Market), nil
}

func newClient(httpClient *http.Client, market string, opts ...spotify.ClientOption) *Client {
	if market == "" {
		market = "JP"
	}
	return &Client{
		client:     spotify.New(httpClient, opts...),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// GetTrack retrieves a track by ID, URL, or URI.
func (c *Client) GetTrack(ctx context.Context, ref string) (*Track, error) {
	id := extractTrackID(ref)
	if id == "" {
		return nil, errors.New("invalid track reference")
	}

	var result *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}

	return convertTrack(result), nil
}

// GetPreviewTrack retrieves a track and fails with ErrNoPreview when it has no preview clip.
func (c *Client) GetPreviewTrack(ctx context.Context, ref string) (*Track, error) {
	t, err := c.GetTrack(ctx, ref)
	if err != nil {
		return nil, err
	}
	if t.PreviewURL == "" {
		return nil, errors.Wrapf(ErrNoPreview, "track %s", t.ID)
	}
	return t, nil
}

// GetPlaylistTracks retrieves every track of a playlist that has a preview clip.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistURL string) ([]Track, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	var tracks []Track
	offset := 0
	limit := 100

	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(limit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			// Episodes have no Track
			if item.Track.Track != nil && item.Track.Track.PreviewURL != "" {
				tracks = append(tracks, *convertTrack(item.Track.Track))
			}
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	return tracks, nil
}

func convertTrack(t *spotify.FullTrack) *Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	title := t.Name
	if len(artists) > 0 {
		title = strings.Join(artists, ", ") + " - " + t.Name
	}

	return &Track{
		ID:         string(t.ID),
		Title:      title,
		Artists:    artists,
		Duration:   time.Duration(t.Duration) * time.Millisecond,
		PreviewURL: t.PreviewURL,
		URL:        GetTrackURL(string(t.ID)),
	}
}

// GetTrackURL returns the Spotify URL for a track.
func GetTrackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var spErr spotify.Error
	if errors.As(err, &spErr) {
		return spErr.Status == http.StatusTooManyRequests || spErr.Status >= 500
	}
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "503")
}

// IsSpotifyRef reports whether ref looks like a Spotify track or playlist reference.
func IsSpotifyRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	return strings.HasPrefix(ref, "spotify:") || strings.Contains(ref, "open.spotify.com/")
}

// IsPlaylistRef reports whether ref names a playlist.
func IsPlaylistRef(ref string) bool {
	return strings.HasPrefix(ref, "spotify:playlist:") || strings.Contains(ref, "/playlist/")
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	return extractID(input, "playlist")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	return extractID(input, "track")
}

// extractID handles spotify:<kind>:ID, https://open.spotify.com/[intl-XX/]<kind>/ID and bare IDs.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	if prefix := "spotify:" + kind + ":"; strings.HasPrefix(input, prefix) {
		return strings.TrimPrefix(input, prefix)
	}

	sep := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, sep) {
		parts := strings.Split(input, sep)
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}

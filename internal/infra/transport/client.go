// Package transport retrieves sound files over HTTP.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/osa030/soundqueue/internal/app/playback"
	zlog "github.com/rs/zerolog/log"
)

// ErrTooLarge is returned when a response exceeds Config.MaxBytes.
var ErrTooLarge = errors.New("response exceeds size limit")

// Config represents HTTP transport configuration.
type Config struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// StatusCode returns the HTTP status code.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// Client is an HTTP sound fetcher.
type Client struct {
	httpClient *http.Client
	maxBytes   int64
	userAgent  string
}

// New creates a new transport client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxBytes:   cfg.MaxBytes,
		userAgent:  cfg.UserAgent,
	}
}

// Fetch downloads url, reporting progress as chunks arrive.
func (c *Client) Fetch(ctx context.Context, url string, onProgress playback.ProgressFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	total := resp.ContentLength
	if c.maxBytes > 0 && total > c.maxBytes {
		return nil, errors.Wrapf(ErrTooLarge, "%d bytes", total)
	}

	var body io.Reader = resp.Body
	if c.maxBytes > 0 {
		body = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	pr := &progressReader{r: body, total: total, onProgress: onProgress}

	data, err := io.ReadAll(pr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return nil, errors.Wrapf(ErrTooLarge, "more than %d bytes", c.maxBytes)
	}
	// Without a Content-Length the reads only reported 0%.
	if total <= 0 && onProgress != nil {
		onProgress(100, pr.loaded, pr.loaded)
	}

	zlog.Debug().Msgf("transport: fetched %s (%d bytes)", url, len(data))
	return data, nil
}

// progressReader reports cumulative progress after every read.
type progressReader struct {
	r          io.Reader
	total      int64 // -1 when unknown
	loaded     int64
	onProgress playback.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.percent(), p.total, p.loaded)
		}
	}
	return n, err
}

func (p *progressReader) percent() float64 {
	if p.total <= 0 {
		return 0
	}
	return 100 * float64(p.loaded) / float64(p.total)
}
